package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scour/internal/config"
)

var flagParseErrorTests = []struct {
	in     string
	flag   string
	reason string
}{
	{
		"unknown flag: --nope",
		"--nope",
		"Flag %s is missing.",
	},
	{
		"flag needs an argument: --model",
		"--model",
		"Flag %s needs an argument.",
	},
	{
		"flag needs an argument: 'm' in -m",
		"-m",
		"Flag %s needs an argument.",
	},
	{
		`invalid argument "20dd" for "--mcp-timeout" flag: time: unknown unit "dd" in duration "20dd"`,
		"--mcp-timeout",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "sdfjasdl" for "--max-tokens" flag: strconv.ParseInt: parsing "sdfjasdl": invalid syntax`,
		"--max-tokens",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "nope" for "-r, --raw" flag: strconv.ParseBool: parsing "nope": invalid syntax`,
		"-r, --raw",
		"Flag %s have an invalid argument.",
	},
}

func TestFlagParseError(t *testing.T) {
	for _, tf := range flagParseErrorTests {
		t.Run(tf.in, func(t *testing.T) {
			err := newFlagParseError(errors.New(tf.in))
			require.Equal(t, tf.flag, err.Flag())
			require.Equal(t, tf.reason, err.ReasonFormat())
			require.Equal(t, tf.in, err.Error())
		})
	}
}

func TestDurationFlag(t *testing.T) {
	t.Run("plain durations", func(t *testing.T) {
		var d time.Duration
		f := newDurationFlag(15*time.Second, &d)
		require.NoError(t, f.Set("2m"))
		require.Equal(t, 2*time.Minute, d)
		require.Equal(t, "2m0s", f.String())
	})

	t.Run("extended units", func(t *testing.T) {
		var d time.Duration
		f := newDurationFlag(0, &d)
		require.NoError(t, f.Set("1d"))
		require.Equal(t, 24*time.Hour, d)
	})

	t.Run("default value", func(t *testing.T) {
		var d time.Duration
		_ = newDurationFlag(15*time.Second, &d)
		require.Equal(t, 15*time.Second, d)
	})
}

func TestMCPTimeoutFlag(t *testing.T) {
	t.Run("flag is registered and can be parsed", func(t *testing.T) {
		cfg := config.Config{}
		cmd := NewRootCmd(BuildInfo{}, cfg, nil)

		err := cmd.ParseFlags([]string{"--mcp-timeout", "45s"})
		require.NoError(t, err)

		flag := cmd.Flag("mcp-timeout")
		require.NotNil(t, flag)
		require.Equal(t, "45s", flag.Value.String())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		cfg := config.Config{}
		cmd := NewRootCmd(BuildInfo{}, cfg, nil)

		err := cmd.ParseFlags([]string{"--mcp-timeout", "eleven"})
		require.Error(t, err)
	})
}
