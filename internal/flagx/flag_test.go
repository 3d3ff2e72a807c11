package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	own := []string{"-a", "-d", "-r"}
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate values", []string{"-a", "http://api", "-x", "1", "-r", "5"}, []string{"-a", "http://api", "-r", "5"}},
		{"equals form", []string{"-d=/data/offline.db", "-c=cfg.yaml"}, []string{"-d=/data/offline.db"}},
		{"commands are dropped", []string{"checkout", "-r", "5", "status"}, []string{"-r", "5"}},
		{"missing value at end", []string{"-a"}, []string{"-a"}},
		{"next flag is not a value", []string{"-a", "-r", "5"}, []string{"-a", "-r", "5"}},
		{"repeated flag keeps order", []string{"-r", "1", "-r", "2"}, []string{"-r", "1", "-r", "2"}},
		{"empty", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, own))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/dwr.yaml"}, "/etc/dwr.yaml"},
		{"long", []string{"-config", "/etc/dwr.json"}, "/etc/dwr.json"},
		{"mixed with other flags", []string{"-a", "http://api", "-c=dwr.yml", "-r", "5"}, "dwr.yml"},
		{"absent", []string{"-a", "http://api"}, ""},
		{"last wins", []string{"-c", "1.yaml", "-config", "2.yaml"}, "2.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFileFlag(tt.args))
		})
	}
}
