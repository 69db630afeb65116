package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSymbol(t *testing.T) {
	tests := []struct {
		code string
		want string
		ok   bool
	}{
		{"600519", "sh600519", true},
		{"688981", "sh688981", true},
		{"000001", "sz000001", true},
		{"300750", "sz300750", true},
		{"430047", "bj430047", true},
		{"830799", "bj830799", true},
		{"920002", "bj920002", true},
		{"200002", "200002", false},
		{"60051", "60051", false},
		{"60051x", "60051x", false},
	}
	for _, tt := range tests {
		got, ok := GenerateSymbol(tt.code)
		assert.Equal(t, tt.want, got, tt.code)
		assert.Equal(t, tt.ok, ok, tt.code)
	}
}

func TestStripExchange(t *testing.T) {
	assert.Equal(t, "600519", StripExchange("sh600519"))
	assert.Equal(t, "000001", StripExchange("000001.SZ"))
	assert.Equal(t, "000001", StripExchange(" 000001 "))
}

type csvRow struct {
	Date   time.Time `col:"date" type:"date"`
	Symbol string    `col:"symbol"`
	Value  *float64  `col:"value"`
	Close  float64   `col:"close"`
	Secret string    `col:"-"`
}

func TestCSVStream(t *testing.T) {
	var buf bytes.Buffer
	cw, err := NewCSVStream[csvRow](&buf)
	require.NoError(t, err)

	v := 12.5
	require.NoError(t, cw.Write([]csvRow{
		{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Symbol: "000001", Value: &v, Close: 10},
		{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), Symbol: "000001", Close: 10.25, Secret: "x"},
	}))
	require.NoError(t, cw.Close())

	assert.Equal(t,
		"date,symbol,value,close\n2024-01-10,000001,12.5,10\n2024-01-11,000001,,10.25\n",
		buf.String())
}

func TestCSVHeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	cw, err := NewCSVStream[csvRow](&buf)
	require.NoError(t, err)
	require.NoError(t, cw.Write(nil))
	require.NoError(t, cw.Close())
	assert.Equal(t, "date,symbol,value,close\n", buf.String())
}

func TestReadCSVFrame(t *testing.T) {
	in := "\ufeffreport_date, net_profit ,remark\n20231231,\"1,234.5\",\n20240331,,restated\n"
	f, err := ReadCSVFrame(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"report_date", "net_profit", "remark"}, f.Names())
	require.Equal(t, 2, f.Len())
	assert.Equal(t, "1,234.5", f.Rows[0]["net_profit"])
	assert.NotContains(t, f.Rows[0], "remark")
	assert.NotContains(t, f.Rows[1], "net_profit")
	assert.Equal(t, "restated", f.Rows[1]["remark"])
}

func TestReadCSVFrameEmpty(t *testing.T) {
	f, err := ReadCSVFrame(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestCheckOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CheckOutputDir(dir))
	require.NoError(t, CheckDirectory(dir))

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.Error(t, CheckOutputDir(file))
	assert.Error(t, CheckDirectory(file))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
}
