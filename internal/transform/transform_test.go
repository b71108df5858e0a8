package transform

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/types"
)

func userRow(id int64, login, password, email string) *types.Record {
	return types.RecordFromRow(
		[]string{"id", "login", "password", "email"},
		[]interface{}{id, login, password, email},
	)
}

func TestPipeline_CustomizeAndAnonymize(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Customize("User", func(r *types.Record) error {
		r.Set("password", "12345678")
		return nil
	}))
	require.NoError(t, p.Anonymize("User", "email", Fixed("user@example.com")))
	require.NoError(t, p.Anonymize("User", "login", Suffix("-test")))

	in := userRow(2, "jcdenton", "amihuman", "jcd@daedalus.net")
	out, err := p.Apply("User", in)
	require.NoError(t, err)

	assert.Equal(t, "jcdenton-test", out.Value("login"))
	assert.Equal(t, "12345678", out.Value("password"))
	assert.Equal(t, "user@example.com", out.Value("email"))
	assert.Equal(t, []string{"id", "login", "password", "email"}, out.Columns())

	assert.Equal(t, "jcdenton", in.Value("login"), "fetched row is not mutated")
	assert.Equal(t, "amihuman", in.Value("password"))
}

func TestPipeline_RegistrationOrder(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Anonymize("User", "login", Suffix("-a")))
	require.NoError(t, p.Customize("User", func(r *types.Record) error {
		r.Set("login", strings.ToUpper(r.Value("login").(string)))
		return nil
	}))
	require.NoError(t, p.Anonymize("User", "login", Suffix("-b")))

	out, err := p.Apply("User", userRow(1, "randall", "x", "y"))
	require.NoError(t, err)
	assert.Equal(t, "RANDALL-A-b", out.Value("login"))
}

func TestPipeline_NoCustomizers(t *testing.T) {
	p := NewPipeline()
	in := userRow(1, "randall", "x", "y")

	out, err := p.Apply("Forum", in)
	require.NoError(t, err)
	assert.Same(t, in, out)
	assert.False(t, p.Has("Forum"))
}

func TestPipeline_SkipsAbsentFields(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Anonymize("User", "password", Fixed("secret")))

	in := types.RecordFromRow([]string{"id", "login"}, []interface{}{int64(1), "randall"})
	out, err := p.Apply("User", in)
	require.NoError(t, err)
	assert.False(t, out.Has("password"))
}

func TestPipeline_CustomizerError(t *testing.T) {
	p := NewPipeline()
	boom := errors.New("boom")
	require.NoError(t, p.Customize("User", func(*types.Record) error { return boom }))

	_, err := p.Apply("User", userRow(1, "a", "b", "c"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestPipeline_RegistrationErrors(t *testing.T) {
	p := NewPipeline()
	assert.Error(t, p.Customize("User", nil))
	assert.Error(t, p.Customize("", func(*types.Record) error { return nil }))
	assert.Error(t, p.Anonymize("User", "", Null()))
	assert.Error(t, p.Anonymize("User", "email", nil))
}

func TestGenerators(t *testing.T) {
	tests := []struct {
		name     string
		gen      Generator
		input    interface{}
		expected interface{}
	}{
		{"fixed", Fixed("x"), "abc", "x"},
		{"null", Null(), "abc", nil},
		{"prefix", Prefix("test-"), "randall", "test-randall"},
		{"suffix on bytes", Suffix("-test"), []byte("randall"), "randall-test"},
		{"suffix keeps null", Suffix("-test"), nil, nil},
		{"sha256", SHA256(), "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"mask", Mask(2), "johndoe", "jo*****"},
		{"mask multibyte", Mask(1), "żółw", "ż***"},
		{"mask short", Mask(10), "abc", "abc"},
		{"mask number", Mask(1), int64(12345), "1****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.gen(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestUUIDGenerator(t *testing.T) {
	a, err := UUID()("ignored")
	require.NoError(t, err)
	b, _ := UUID()("ignored")

	parsed, err := uuid.Parse(a.(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, a, b)
}

func TestNewGenerator(t *testing.T) {
	for _, kind := range []string{"fixed", "null", "prefix", "suffix", "uuid", "sha256", "mask", "MASK"} {
		gen, err := NewGenerator(config.AnonymizeConfig{Field: "f", Generator: kind})
		require.NoError(t, err, kind)
		assert.NotNil(t, gen)
	}

	_, err := NewGenerator(config.AnonymizeConfig{Field: "f", Generator: "faker"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownGenerator))
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig([]config.TransformConfig{
		{Model: "User", Set: map[string]interface{}{"password": "12345678"}},
		{Model: "User", Anonymize: []config.AnonymizeConfig{
			{Field: "email", Generator: "fixed", Value: "user@example.com"},
			{Field: "login", Generator: "suffix", Value: "-test"},
		}},
		{Model: "Profile", Nullify: []string{"phone"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Profile"}, p.Models())

	out, err := p.Apply("User", userRow(1, "randall", "correcthorsebatterystaple", "xkcd@xkcd.com"))
	require.NoError(t, err)
	assert.Equal(t, "randall-test", out.Value("login"))
	assert.Equal(t, "12345678", out.Value("password"))
	assert.Equal(t, "user@example.com", out.Value("email"))

	profile := types.RecordFromRow([]string{"id", "phone"}, []interface{}{int64(1), "555"})
	out, err = p.Apply("Profile", profile)
	require.NoError(t, err)
	assert.Nil(t, out.Value("phone"))
	assert.True(t, out.Has("phone"))
}

func TestFromConfig_UnknownGenerator(t *testing.T) {
	_, err := FromConfig([]config.TransformConfig{
		{Model: "User", Anonymize: []config.AnonymizeConfig{{Field: "email", Generator: "lorem"}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownGenerator))
	assert.Contains(t, err.Error(), "transforms[0].anonymize[0]")
}

func TestValidate(t *testing.T) {
	reg, err := schema.NewRegistry([]*schema.Model{
		{Name: "User", PrimaryKey: "id", Columns: []schema.Column{{Name: "id"}, {Name: "email"}}},
		{Name: "Forum", PrimaryKey: "id"},
	})
	require.NoError(t, err)

	p := NewPipeline()
	require.NoError(t, p.Anonymize("User", "email", Null()))
	require.NoError(t, p.Anonymize("Forum", "anything", Null()))
	assert.NoError(t, p.Validate(reg), "models without known columns are not checked")

	require.NoError(t, p.Anonymize("User", "phone", Null()))
	err = p.Validate(reg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))

	p = NewPipeline()
	require.NoError(t, p.Anonymize("Answer", "body", Null()))
	err = p.Validate(reg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnknownModel))
}
