package rediskey

import "fmt"

// Engine state keys. Global scope holds shared collections, user scope holds
// per-account values keyed by the user's stable identity.
const (
	Prefix           = "boostfix"
	TasksKey         = "boostfix:tasks"
	ActivitiesKey    = "boostfix:activities"
	DepositsKey      = "boostfix:deposits"
	IndexKey         = "boostfix:keys"
	UserPrefix       = "boostfix:user"
	FieldEarnings    = "earnings"
	FieldBudget      = "budget"
	FieldReputation  = "reputation"
	FieldEntries     = "entries"
	FieldUpdatedAt   = "updated_at"
	userKeySeparator = ":"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildUserKey returns "boostfix:user:{userID}:{field}"
func BuildUserKey(userID, field string) string {
	return NamespaceKey(NamespaceKey(UserPrefix, userID), field)
}

// ParseUserKey is the inverse of BuildUserKey. The user id may itself contain
// separators, so the field is taken from the right.
func ParseUserKey(key string) (userID, field string, ok bool) {
	prefix := UserPrefix + userKeySeparator
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", "", false
	}
	rest := key[len(prefix):]
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i:i+1] == userKeySeparator {
			if i == 0 || i == len(rest)-1 {
				return "", "", false
			}
			return rest[:i], rest[i+1:], true
		}
	}
	return "", "", false
}
