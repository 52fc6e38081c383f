package kongtest

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

type cli struct {
	StringVar   string        `default:"string-default" env:"STRING_VAR"`
	IntVar      int           `default:"123" env:"INT_VAR"`
	BoolVar     bool          `default:"true" env:"BOOL_VAR"`
	DurationVar time.Duration `default:"10s" env:"DURATION_VAR"`
}

type requiredCLI struct {
	StringVar string `default:"string-default" env:"STRING_VAR"`
	IntVar    int    `default:"123" env:"INT_VAR"`
	Required  string `env:"REQUIRED_VAR" required:""`
}

func TestHelp(t *testing.T) {
	c := cli{}
	s := Help(t, &c)
	assert.Check(t, cmp.Contains(s, "--string-var"))
	assert.Check(t, cmp.Contains(s, "string-default"))
	assert.Check(t, cmp.Contains(s, "($DURATION_VAR)"))
	assert.Check(t, cmp.DeepEqual(c, cli{
		StringVar:   "string-default",
		IntVar:      123,
		BoolVar:     true,
		DurationVar: 10 * time.Second,
	}))
}

func TestParse(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		c := requiredCLI{}
		err := Parse(t, &c, map[string]string{
			"INT_VAR":      "7",
			"REQUIRED_VAR": "here",
		})
		assert.Assert(t, err)
		assert.Check(t, cmp.Equal(c.IntVar, 7))
		assert.Check(t, cmp.Equal(c.Required, "here"))
		assert.Check(t, cmp.Equal(c.StringVar, "string-default"))
	})

	t.Run("flags win over env", func(t *testing.T) {
		c := requiredCLI{}
		err := Parse(t, &c, map[string]string{"INT_VAR": "7"}, "--int-var=8", "--required=flag")
		assert.Assert(t, err)
		assert.Check(t, cmp.Equal(c.IntVar, 8))
	})

	t.Run("missing required", func(t *testing.T) {
		c := requiredCLI{}
		err := Parse(t, &c, nil)
		assert.Check(t, cmp.ErrorContains(err, "--required"))
	})
}
