package auth

const (
	CaptchaLength   = 6
	captchaAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewChallenge returns a random CAPTCHA string.
func NewChallenge() (string, error) {
	buf := make([]byte, CaptchaLength)
	for i := range buf {
		c, err := randomChar(captchaAlphabet)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}
