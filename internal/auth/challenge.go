package auth

// ChallengePrefix - префикс сообщения, которое кошелёк подписывает через personal_sign.
const ChallengePrefix = "PixelGenesis login nonce: "

func ChallengeMessage(nonce string) string {
	return ChallengePrefix + nonce
}
