package ami

import (
	"crypto/md5"
	"encoding/hex"
)

// ChallengeResponse computes the Key value for a Login action
// authenticating with AuthType MD5: the hex-encoded MD5 digest of the
// challenge string (obtained via NewChallenge) concatenated with the
// account's secret.
func ChallengeResponse(challenge, secret string) string {
	sum := md5.Sum([]byte(challenge + secret))
	return hex.EncodeToString(sum[:])
}
