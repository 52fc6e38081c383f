package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/icmd"
)

func TestCompiler_CompileAll(t *testing.T) {
	c := New()

	var binary1, binary2 string
	t.Cleanup(func() {
		c.Cleanup()

		_, err := os.Stat(binary1)
		assert.Check(t, os.IsNotExist(err))
		_, err = os.Stat(binary2)
		assert.Check(t, os.IsNotExist(err))
	})

	assert.Assert(t, t.Run("Compile binaries", func(t *testing.T) {
		err := c.CompileAll(context.Background(), 2,
			Work{
				Result: &binary1,
				Name:   "binary1",
				Target: "../..",
				Source: "./testing/compiler/internal/cmd",
			},
			Work{
				Result: &binary2,
				Name:   "binary2",
				Target: "../..",
				Source: "./testing/compiler/internal/cmd2",
			},
		)
		assert.Check(t, err)
		_, err = os.Stat(binary1)
		assert.Check(t, err)
		_, err = os.Stat(binary2)
		assert.Check(t, err)
	}))

	t.Run("Run binaries", func(t *testing.T) {
		res := icmd.RunCommand(binary1, "arg1", "arg2", "arg3")
		assert.Check(t, res.Equal(icmd.Expected{
			Out: "command 1: [arg1 arg2 arg3]",
		}))

		res = icmd.RunCommand(binary2, "arg1", "arg2", "arg3")
		assert.Check(t, res.Equal(icmd.Expected{
			Out: "command 2: [arg1 arg2 arg3]",
		}))
	})
}

func TestCompiler_CompileAll_SameNameDifferentSource(t *testing.T) {
	c := New()
	t.Cleanup(c.Cleanup)

	var one, two string
	err := c.CompileAll(context.Background(), 2,
		Work{
			Result: &one,
			Name:   "svc",
			Target: "../..",
			Source: "./testing/compiler/internal/cmd",
		},
		Work{
			Result: &two,
			Name:   "svc",
			Target: "../..",
			Source: "./testing/compiler/internal/cmd2",
		},
	)
	assert.Assert(t, err)
	assert.Check(t, one != two, "each source needs its own binary")
	assert.Check(t, cmp.Equal(filepath.Base(one), "svc"))
	assert.Check(t, cmp.Equal(filepath.Base(two), "svc"))

	res := icmd.RunCommand(one, "x")
	assert.Check(t, res.Equal(icmd.Expected{Out: "command 1: [x]"}))
	res = icmd.RunCommand(two, "x")
	assert.Check(t, res.Equal(icmd.Expected{Out: "command 2: [x]"}))
}
