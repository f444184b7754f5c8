package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readerFor(env map[string]string) *envReader {
	return &envReader{lookup: func(key string) string { return env[key] }}
}

func TestEnvReader_Str(t *testing.T) {
	r := readerFor(map[string]string{"S3_REGION": "", "AWS_REGION": "nyc3"})

	assert.Equal(t, "nyc3", r.str("us-east-1", "S3_REGION", "AWS_REGION"))
	assert.Equal(t, "us-east-1", r.str("us-east-1", "SQS_REGION"))
	assert.NoError(t, r.err())
}

func TestEnvReader_Typed(t *testing.T) {
	r := readerFor(map[string]string{
		"DB_PORT":           "6543",
		"S3_USE_PATH_STYLE": "true",
		"HTTP_TIMEOUT":      "90s",
	})

	assert.Equal(t, 6543, r.integer("DB_PORT", 5432))
	assert.Equal(t, 3, r.integer("STORAGE_MAX_RETRIES", 3))
	assert.True(t, r.boolean("S3_USE_PATH_STYLE", false))
	assert.True(t, r.boolean("LAMBDA_PARTIAL_BATCH_FAILURE", true))
	assert.Equal(t, 90*time.Second, r.duration("HTTP_TIMEOUT", time.Minute))
	assert.Equal(t, time.Minute, r.duration("STORAGE_TIMEOUT", time.Minute))
	assert.NoError(t, r.err())
}

func TestEnvReader_MalformedValues(t *testing.T) {
	r := readerFor(map[string]string{
		"DB_PORT":           "five",
		"S3_USE_PATH_STYLE": "maybe",
		"HTTP_TIMEOUT":      "90",
	})

	assert.Equal(t, 5432, r.integer("DB_PORT", 5432))
	assert.False(t, r.boolean("S3_USE_PATH_STYLE", false))
	assert.Equal(t, time.Minute, r.duration("HTTP_TIMEOUT", time.Minute))

	err := r.err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `DB_PORT: "five" is not an integer`)
	assert.Contains(t, err.Error(), `S3_USE_PATH_STYLE: "maybe" is not a boolean`)
	assert.Contains(t, err.Error(), `HTTP_TIMEOUT: "90" is not a duration`)
}

func TestEnvReader_List(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{name: "items are trimmed", value: " jpg, png ,gif", expected: []string{"jpg", "png", "gif"}},
		{name: "empty items dropped", value: "jpg,,webp,", expected: []string{"jpg", "webp"}},
		{name: "only separators", value: " , ,", expected: []string{"default"}},
		{name: "unset", value: "", expected: []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := readerFor(map[string]string{"OFFLOAD_IMAGE_EXTENSIONS": tt.value})
			assert.Equal(t, tt.expected, r.list("OFFLOAD_IMAGE_EXTENSIONS", []string{"default"}))
		})
	}
}

func TestRunningOnLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	t.Setenv("LAMBDA_TASK_ROOT", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	assert.False(t, runningOnLambda())

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "media-offload")
	assert.True(t, runningOnLambda())
}
