package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndParseUserKey(t *testing.T) {
	key := BuildUserKey("GijMWAMeiRpyFqiGbYVdtAJHheVH4wc64aqCck2yw22j", FieldEarnings)
	require.Equal(t, "boostfix:user:GijMWAMeiRpyFqiGbYVdtAJHheVH4wc64aqCck2yw22j:earnings", key)

	user, field, ok := ParseUserKey(key)
	require.True(t, ok)
	require.Equal(t, "GijMWAMeiRpyFqiGbYVdtAJHheVH4wc64aqCck2yw22j", user)
	require.Equal(t, FieldEarnings, field)
}

func TestParseUserKeyWithSeparatorInID(t *testing.T) {
	user, field, ok := ParseUserKey(BuildUserKey("twitter:42", FieldReputation))
	require.True(t, ok)
	require.Equal(t, "twitter:42", user)
	require.Equal(t, FieldReputation, field)
}

func TestParseUserKeyRejectsGlobalKeys(t *testing.T) {
	for _, key := range []string{TasksKey, ActivitiesKey, "boostfix:user:", "boostfix:user:abc"} {
		_, _, ok := ParseUserKey(key)
		require.False(t, ok, key)
	}
}
