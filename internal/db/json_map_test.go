package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ScanAndValue(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"title":"Clip","duration":12.5}`)))
	require.Equal(t, "Clip", m["title"])
	require.Equal(t, 12.5, m["duration"])

	v, err := m.Value()
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"Clip","duration":12.5}`, string(v.([]byte)))

	require.NoError(t, m.Scan(nil))
	require.Nil(t, m)
	v, err = m.Value()
	require.NoError(t, err)
	require.Nil(t, v)

	require.Error(t, m.Scan(42))
}

func TestJSONMap_Text(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.ScanText(pgtype.Text{String: `{"a":"b"}`, Valid: true}))
	require.Equal(t, "b", m["a"])

	txt, err := m.TextValue()
	require.NoError(t, err)
	require.True(t, txt.Valid)
	require.JSONEq(t, `{"a":"b"}`, txt.String)

	require.NoError(t, m.ScanText(pgtype.Text{}))
	txt, err = m.TextValue()
	require.NoError(t, err)
	require.False(t, txt.Valid)
}
