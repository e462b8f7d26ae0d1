package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id int64, kv ...string) Record {
	r := Record{ID: id, Fields: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Fields[kv[i]] = kv[i+1]
	}
	return r
}

func TestEqual(t *testing.T) {
	for _, tc := range []struct {
		name  string
		a, b  Collection
		equal bool
	}{
		{"both empty", Collection{}, Collection{}, true},
		{"nil and empty", nil, Collection{}, true},
		{"same", Collection{rec(1, "role", "Eng")}, Collection{rec(1, "role", "Eng")}, true},
		{"length differs", Collection{rec(1)}, Collection{rec(1), rec(2)}, false},
		{"id differs", Collection{rec(1)}, Collection{rec(2)}, false},
		{"value differs", Collection{rec(1, "role", "Eng")}, Collection{rec(1, "role", "Lead")}, false},
		{"missing vs empty field", Collection{rec(1, "role", "")}, Collection{rec(1)}, false},
		{"reordered", Collection{rec(1), rec(2)}, Collection{rec(2), rec(1)}, false},
		{"nil fields and empty fields", Collection{{ID: 1}}, Collection{rec(1)}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.equal, tc.a.Equal(tc.b))
			assert.Equal(t, tc.equal, tc.b.Equal(tc.a))
		})
	}
}

func TestNextID(t *testing.T) {
	assert.Equal(t, int64(1), Collection{}.NextID())
	assert.Equal(t, int64(8), Collection{rec(3), rec(7)}.NextID())
	assert.Equal(t, int64(8), Collection{rec(7), rec(3)}.NextID())
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := make(Collection, 0, 4)
	base = append(base, rec(3, "role", "Eng"))
	out, added := base.Append()
	require.Len(t, out, 2)
	assert.Equal(t, int64(4), added.ID)
	assert.Empty(t, added.Fields)
	assert.NotNil(t, added.Fields)

	out[0].Fields["role"] = "changed"
	assert.Equal(t, "Eng", base[0].Fields["role"])
	assert.Len(t, base, 1)

	out, added = out.Append("role")
	assert.Equal(t, int64(5), added.ID)
	assert.Equal(t, map[string]string{"role": ""}, added.Fields)
	assert.Len(t, out, 3)
}

func TestRemoveAt(t *testing.T) {
	c := Collection{rec(1), rec(2), rec(3)}
	out, err := c.RemoveAt(2)
	require.NoError(t, err)
	assert.Equal(t, Collection{rec(1), rec(3)}, out)
	assert.Len(t, c, 3)

	_, err = c.RemoveAt(0)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
	_, err = c.RemoveAt(4)
	var slotErr *SlotError
	require.ErrorAs(t, err, &slotErr)
	assert.Equal(t, 4, slotErr.Slot)
	assert.Equal(t, 3, slotErr.Len)
}

func TestSetField(t *testing.T) {
	c := Collection{rec(1, "role", "Eng"), rec(2)}
	out, err := c.SetField(2, "role", "Lead")
	require.NoError(t, err)
	assert.Equal(t, "Lead", out[1].Fields["role"])
	_, ok := c[1].Fields["role"]
	assert.False(t, ok)

	_, err = c.SetField(3, "role", "x")
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestFieldNamesAndAt(t *testing.T) {
	c := Collection{rec(1, "role", "Eng"), rec(2, "team", "core", "role", "x")}
	assert.Equal(t, []string{"role", "team"}, c.FieldNames())

	r, ok := c.At(2)
	assert.True(t, ok)
	assert.Equal(t, int64(2), r.ID)
	_, ok = c.At(3)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Collection{rec(1), rec(5)}.Validate())
	assert.Error(t, Collection{rec(0)}.Validate())
	assert.Error(t, Collection{rec(2), rec(2)}.Validate())
}

func TestString(t *testing.T) {
	assert.Equal(t, `{1 role:"Eng" team:"core"}`, rec(1, "team", "core", "role", "Eng").String())
}
