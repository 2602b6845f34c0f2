package entity

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalZone is the business day zone used for day boundaries and provider timestamps
var LocalZone = time.FixedZone("CST", 8*3600)

// ProviderTimeLayout is the provider's timestamp format, in LocalZone
const ProviderTimeLayout = "2006-01-02 15:04:05"

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenConversationId derives the conversation id of a user pair.
// The ids are sorted and joined with ":" then hashed into a name based UUID,
// so either side computes the same id.
func GenConversationId(userA, userB string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(strings.Join(users, ":"))).String()
}

// DayStartMilli returns the start of the local day containing ms
func DayStartMilli(ms int64) int64 {
	t := time.UnixMilli(ms).In(LocalZone)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, LocalZone).UnixMilli()
}

// ParseProviderTime parses a provider timestamp. Empty input yields 0.
func ParseProviderTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	t, err := time.ParseInLocation(ProviderTimeLayout, s, LocalZone)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
