package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value kept",
			args:    []string{"-a", "http://localhost", "-x", "nope"},
			allowed: []string{"-a"},
			want:    []string{"-a", "http://localhost"},
		},
		{
			name:    "equals form kept",
			args:    []string{"--config=conf.json", "-z"},
			allowed: []string{"--config"},
			want:    []string{"--config=conf.json"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", "1"},
			allowed: []string{"-b"},
			want:    []string{},
		},
		{
			name:    "flag followed by another flag takes no value",
			args:    []string{"-a", "-b", "x"},
			allowed: []string{"-a", "-b"},
			want:    []string{"-a", "-b", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}
