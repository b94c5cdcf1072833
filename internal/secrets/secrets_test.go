package secrets

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

type fakeSM struct {
	values map[string]*secretsmanager.GetSecretValueOutput
	calls  []string
}

func (f *fakeSM) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(in.SecretId)
	f.calls = append(f.calls, id)
	out, ok := f.values[id]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return out, nil
}

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestHashSecret_Env(t *testing.T) {
	r := NewResolver(types.AWSConfig{}, WithGetenv(env(map[string]string{
		types.DefaultHashSecretEnv: "default",
		"CUSTOM":                   "custom",
	})))
	ctx := context.Background()

	got, err := r.HashSecret(ctx, &types.ProjectConfig{})
	require.NoError(t, err)
	assert.Equal(t, []byte("default"), got)

	got, err = r.HashSecret(ctx, &types.ProjectConfig{HashSecretEnv: "CUSTOM"})
	require.NoError(t, err)
	assert.Equal(t, []byte("custom"), got)
}

func TestHashSecret_EmptyWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewResolver(types.AWSConfig{}, WithGetenv(env(nil)), WithLogger(logger))

	got, err := r.HashSecret(context.Background(), &types.ProjectConfig{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestHashSecret_SecretsManager(t *testing.T) {
	sm := &fakeSM{values: map[string]*secretsmanager.GetSecretValueOutput{
		"liia/hash":   {SecretString: aws.String("from-sm")},
		"liia/binary": {SecretBinary: []byte("bin")},
	}}
	r := NewResolver(types.AWSConfig{}, WithClient(sm), WithGetenv(env(map[string]string{types.DefaultHashSecretEnv: "ignored"})))
	ctx := context.Background()

	got, err := r.HashSecret(ctx, &types.ProjectConfig{HashSecretID: "liia/hash"})
	require.NoError(t, err)
	assert.Equal(t, []byte("from-sm"), got)

	got, err = r.HashSecret(ctx, &types.ProjectConfig{HashSecretID: "liia/binary"})
	require.NoError(t, err)
	assert.Equal(t, []byte("bin"), got)

	_, err = r.HashSecret(ctx, &types.ProjectConfig{HashSecretID: "missing"})
	assert.ErrorContains(t, err, "missing")
	assert.Equal(t, []string{"liia/hash", "liia/binary", "missing"}, sm.calls)
}
