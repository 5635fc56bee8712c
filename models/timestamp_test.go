package models

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTimeUnmarshalString(t *testing.T) {
	var ft FlexTime
	err := json.Unmarshal([]byte(`"2024-01-01T10:00:00Z"`), &ft)
	require.NoError(t, err)
	assert.True(t, ft.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestFlexTimeUnmarshalStringWithNanos(t *testing.T) {
	var ft FlexTime
	err := json.Unmarshal([]byte(`"2024-01-01T10:00:00.123456789Z"`), &ft)
	require.NoError(t, err)
	assert.Equal(t, 123456789, ft.Nanosecond())
}

func TestFlexTimeUnmarshalArrayUsesLocalComponents(t *testing.T) {
	var ft FlexTime
	err := json.Unmarshal([]byte(`[2024,1,1,9,30,15,500]`), &ft)
	require.NoError(t, err)
	assert.True(t, ft.Equal(time.Date(2024, 1, 1, 9, 30, 15, 500, time.Local)))
}

func TestFlexTimeUnmarshalShortArray(t *testing.T) {
	var ft FlexTime
	err := json.Unmarshal([]byte(`[2024,3,15]`), &ft)
	require.NoError(t, err)
	assert.True(t, ft.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local)))
}

func TestFlexTimeUnmarshalRejectsGarbage(t *testing.T) {
	var ft FlexTime
	assert.Error(t, json.Unmarshal([]byte(`"not a timestamp"`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`[2024]`), &ft))
	assert.Error(t, json.Unmarshal([]byte(`{"y":2024}`), &ft))
}

func TestFlexTimeMarshalEmitsRFC3339(t *testing.T) {
	ft := NewFlexTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	out, err := json.Marshal(ft)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-01T10:00:00Z"`, string(out))
}

// Both wire shapes must normalize to comparable instants: a string record, an
// array record and a later third record have to sort by instant no matter
// which shape each arrived in.
func TestFlexTimeBothShapesSortTogether(t *testing.T) {
	origLocal := time.Local
	time.Local = time.UTC
	defer func() { time.Local = origLocal }()

	raw := []string{
		`"2024-01-01T10:00:00Z"`,
		`[2024,1,1,9,0,0,0]`,
		`"2024-01-01T11:00:00Z"`,
	}
	parsed := make([]FlexTime, len(raw))
	for i, r := range raw {
		require.NoError(t, json.Unmarshal([]byte(r), &parsed[i]))
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].After(parsed[j].Time) })

	assert.True(t, parsed[0].Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)))
	assert.True(t, parsed[1].Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, parsed[2].Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
}

func TestNotificationJSONRoundTrip(t *testing.T) {
	n := Notification{
		Type:      NotificationTypeOrder,
		Title:     "Đơn hàng đã gửi",
		Content:   "Đơn hàng #123 đang trên đường giao.",
		IsRead:    false,
		CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	out, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "order", decoded["type"])
	assert.Equal(t, false, decoded["isRead"])
	assert.Equal(t, "2024-01-01T10:00:00Z", decoded["createdAt"])
}

func TestIsValidNotificationType(t *testing.T) {
	for _, valid := range []string{"order", "product", "system", "promotion", "review"} {
		assert.True(t, IsValidNotificationType(valid), valid)
	}
	assert.False(t, IsValidNotificationType("booking"))
	assert.False(t, IsValidNotificationType(""))
}
