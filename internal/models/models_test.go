package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageMarshalJSON(t *testing.T) {
	msg := Message{ID: "m1", Text: "hi", Chat: "c1", Author: "alice", Created: 1_700_000_000_250_000}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.Equal(t, `{"id":"m1","text":"hi","chat":"c1","author":"alice","created":1700000000.25}`, string(data))
}

func TestChatAndUserFieldOrder(t *testing.T) {
	data, err := json.Marshal(Chat{ID: "c1", Name: "general"})
	require.NoError(t, err)
	require.Equal(t, `{"id":"c1","name":"general","is_private":false}`, string(data))

	data, err = json.Marshal(User{Name: "alice", Token: "t"})
	require.NoError(t, err)
	require.Equal(t, `{"name":"alice","token":"t"}`, string(data))
}

func TestEpochConversionRoundTrip(t *testing.T) {
	for _, micros := range []int64{0, 1, 999_999, 1_700_000_000_123_456, time.Now().UnixMicro()} {
		require.Equal(t, micros, EpochToMicros(MicrosToEpoch(micros)))
	}
	require.Equal(t, int64(1_500_000), EpochToMicros(1.5))
}

func TestEpochToMicrosSaturates(t *testing.T) {
	req := require.New(t)
	for _, seconds := range []float64{9e12, 1e13, 1e30, math.MaxFloat64, math.Inf(1)} {
		req.Equal(int64(math.MaxInt64), EpochToMicros(seconds), seconds)
	}
	for _, seconds := range []float64{-9e12, -1e13, -1e30, math.Inf(-1)} {
		req.Equal(int64(math.MinInt64), EpochToMicros(seconds), seconds)
	}
	req.Equal(int64(8_999_999_999_999_000_000), EpochToMicros(8_999_999_999_999))
	req.Equal(int64(-1_500_000), EpochToMicros(-1.5))
}

func TestMessageHelpers(t *testing.T) {
	msg := Message{Author: SystemAuthor, Created: 1_000_000}
	require.True(t, msg.IsSystem())
	require.Equal(t, time.Unix(1, 0).UTC(), msg.CreatedAt())
}
