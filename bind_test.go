package pg_test

import (
	"testing"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	"github.com/stretchr/testify/assert"
)

func Test_Bind_001(t *testing.T) {
	assert := assert.New(t)

	t.Run("1", func(t *testing.T) {
		bind := pg.NewBind("a", "b")
		assert.NotNil(bind)
		assert.True(bind.Has("a"))
		assert.Equal("b", bind.Get("a"))
	})

	t.Run("2", func(t *testing.T) {
		bind := pg.NewBind("a", "b", "c")
		assert.Nil(bind)
	})

	t.Run("3", func(t *testing.T) {
		bind := pg.NewBind("a", 100)
		assert.NotNil(bind)
		assert.True(bind.Has("a"))
		assert.Equal(100, bind.Get("a"))
	})

	t.Run("4", func(t *testing.T) {
		bind := pg.NewBind()
		assert.NotNil(bind)
		assert.Equal("@a", bind.Set("a", "b"))
		assert.True(bind.Has("a"))
		assert.Equal("b", bind.Get("a"))
	})

	t.Run("5", func(t *testing.T) {
		bind := pg.NewBind("", "b")
		assert.Nil(bind)
	})

	t.Run("6", func(t *testing.T) {
		bind := pg.NewBind()
		assert.NotNil(bind)
		assert.Equal("", bind.Set("", "b"))
	})

}

func Test_Bind_002(t *testing.T) {
	assert := assert.New(t)
	tests := []struct {
		In  string
		Out string
	}{
		{In: `$schema`, Out: "schema"},
		{In: `${'schema'}`, Out: "'schema'"},
		{In: `${"schema"}`, Out: `"schema"`},
		{In: `$1`, Out: `$1`},
		{In: `${1}`, Out: `$1`},
		{In: `$$`, Out: `$$`},
		{In: `${'single'}`, Out: `'''single'''`},
		{In: `${"single"}`, Out: `"'single'"`},
		{In: `${'double'}`, Out: `'"double"'`},
		{In: `${"double"}`, Out: `"""double"""`},
	}

	bind := pg.NewBind(
		"schema", "schema",
		"single", "'single'",
		"double", "\"double\"",
	)

	for _, test := range tests {
		t.Run(test.In, func(t *testing.T) {
			assert.Equal(test.Out, bind.Replace(test.In))
		})
	}
}

func Test_Bind_003(t *testing.T) {
	assert := assert.New(t)

	bind := pg.NewBind(
		"list", []string{"a", "b", "c"},
	)
	assert.Equal("IN ('a','b','c')", bind.Replace("IN (${'list'})"))
}

func Test_Bind_004(t *testing.T) {
	assert := assert.New(t)

	t.Run("CopyIsIndependent", func(t *testing.T) {
		bind := pg.NewBind("a", 1)
		copy := bind.Copy("b", 2)
		assert.NotNil(copy)
		copy.Set("a", 3)
		assert.Equal(1, bind.Get("a"))
		assert.Equal(3, copy.Get("a"))
		assert.False(bind.Has("b"))
		assert.True(copy.Has("b"))
	})

	t.Run("CopyOddPairs", func(t *testing.T) {
		bind := pg.NewBind("a", 1)
		assert.Nil(bind.Copy("b"))
	})

	t.Run("Del", func(t *testing.T) {
		bind := pg.NewBind("a", 1)
		bind.Del("a")
		assert.False(bind.Has("a"))
		assert.Nil(bind.Get("a"))
	})
}

func Test_Bind_005(t *testing.T) {
	assert := assert.New(t)

	t.Run("EmptyList", func(t *testing.T) {
		bind := pg.NewBind("list", []string{})
		assert.Equal("IN ()", bind.Replace("IN (${'list'})"))
	})

	t.Run("MissingKey", func(t *testing.T) {
		bind := pg.NewBind()
		assert.Equal(`"<nil>"`, bind.Replace(`${"missing"}`))
	})

	t.Run("NamedArgsUntouched", func(t *testing.T) {
		bind := pg.NewBind("table", "t")
		assert.Equal("SELECT @id FROM t", bind.Replace("SELECT @id FROM ${table}"))
	})
}

func Test_Bind_006(t *testing.T) {
	assert := assert.New(t)

	// Statements expand into other statements, and identifiers are quoted
	bind := pg.NewBind(
		"schema", "orders",
		"pgbus.count", `SELECT COUNT(*) FROM ${"schema"}.${"table"}`,
		"table", "pgbus_queue_new",
	)
	query := bind.Replace("${pgbus.count}")
	assert.Equal(`SELECT COUNT(*) FROM ${"schema"}.${"table"}`, query)
	assert.Equal(`SELECT COUNT(*) FROM "orders"."pgbus_queue_new"`, bind.Replace(query))
}

func Test_Bind_007(t *testing.T) {
	assert := assert.New(t)

	bind := pg.NewBind("id", 42)
	data, err := bind.MarshalJSON()
	assert.NoError(err)
	assert.JSONEq(`{"id":42}`, string(data))
}
