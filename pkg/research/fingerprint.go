package research

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	numberPattern = regexp.MustCompile(`\d+\.?\d*`)
	cjkPattern    = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,4}`)
)

// Fingerprint computes the dedup fingerprint for a fact's content: a hash
// over up to 3 numeric tokens joined with up to 5 CJK-keyword tokens,
// mirroring the original Searcher's extraction pass exactly.
func Fingerprint(content string) string {
	numbers := numberPattern.FindAllString(content, -1)
	if len(numbers) > 3 {
		numbers = numbers[:3]
	}
	keywords := cjkPattern.FindAllString(content, -1)
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	raw := strings.Join(numbers, ",") + "|" + strings.Join(keywords, ",")
	sum := md5.Sum([]byte(raw))
	hexStr := hex.EncodeToString(sum[:])
	return hexStr[:16]
}
