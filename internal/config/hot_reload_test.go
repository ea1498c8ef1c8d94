package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MockParameterApplier 模拟参数应用器
type MockParameterApplier struct {
	applied map[string]interface{}
}

func NewMockParameterApplier() *MockParameterApplier {
	return &MockParameterApplier{
		applied: make(map[string]interface{}),
	}
}

func (m *MockParameterApplier) ApplyParameters(params map[string]interface{}) error {
	for k, v := range params {
		m.applied[k] = v
	}
	return nil
}

func (m *MockParameterApplier) GetApplied(key string) interface{} {
	return m.applied[key]
}

func TestHotReloader_New(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "position-rules.json")

	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	cfg := DefaultHotReloadConfig()
	reloader, err := NewHotReloader(configPath, cfg)
	if err != nil {
		t.Fatalf("Failed to create hot reloader: %v", err)
	}
	defer reloader.Stop()

	if reloader == nil {
		t.Fatal("Reloader is nil")
	}

	if reloader.configPath != configPath {
		t.Errorf("Expected config path %s, got %s", configPath, reloader.configPath)
	}
}

func TestHotReloader_RegisterValidator(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "position-rules.json")
	os.WriteFile(configPath, []byte("{}"), 0644)

	cfg := DefaultHotReloadConfig()
	reloader, _ := NewHotReloader(configPath, cfg)
	defer reloader.Stop()

	validator := &PositionRuleParameterValidator{}
	reloader.RegisterValidator("positionRules", validator)

	if len(reloader.validators) != 1 {
		t.Errorf("Expected 1 validator, got %d", len(reloader.validators))
	}
}

func TestHotReloader_RegisterApplier(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "position-rules.json")
	os.WriteFile(configPath, []byte("{}"), 0644)

	cfg := DefaultHotReloadConfig()
	reloader, _ := NewHotReloader(configPath, cfg)
	defer reloader.Stop()

	applier := NewMockParameterApplier()
	reloader.RegisterApplier("positionRules", applier)

	if len(reloader.appliers) != 1 {
		t.Errorf("Expected 1 applier, got %d", len(reloader.appliers))
	}
}

func TestHotReloader_ValidateAndApply(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "position-rules.json")
	os.WriteFile(configPath, []byte("{}"), 0644)

	cfg := DefaultHotReloadConfig()
	reloader, _ := NewHotReloader(configPath, cfg)
	defer reloader.Stop()

	validator := &PositionRuleParameterValidator{}
	applier := NewMockParameterApplier()

	reloader.RegisterValidator("positionRules", validator)
	reloader.RegisterApplier("positionRules", applier)

	validParams := map[string]interface{}{
		"maxLeverage":           5.0,
		"maxMarginShare":        0.2,
		"totalMarginUsageLimit": 0.8,
		"minFundingRateDelta":   0.0,
	}

	err := reloader.ApplyParameters("positionRules", validParams)
	if err != nil {
		t.Errorf("Failed to apply valid parameters: %v", err)
	}

	if applier.GetApplied("maxLeverage") != 5.0 {
		t.Error("Parameters not applied correctly")
	}
}

func TestHotReloader_StartStop(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "position-rules.json")
	os.WriteFile(configPath, []byte("{}"), 0644)

	cfg := DefaultHotReloadConfig()
	reloader, _ := NewHotReloader(configPath, cfg)

	ctx := context.Background()

	err := reloader.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	err = reloader.Stop()
	if err != nil {
		t.Errorf("Failed to stop reloader: %v", err)
	}
}

func TestPositionRuleParameterValidator_Valid(t *testing.T) {
	validator := &PositionRuleParameterValidator{}

	testCases := []struct {
		name   string
		params map[string]interface{}
	}{
		{
			name: "Valid parameters",
			params: map[string]interface{}{
				"maxLeverage":           5.0,
				"maxMarginShare":        0.2,
				"totalMarginUsageLimit": 0.8,
				"minFundingRateDelta":   0.001,
			},
		},
		{
			name: "Minimum values",
			params: map[string]interface{}{
				"maxLeverage":    0.001,
				"maxMarginShare": 0.001,
			},
		},
		{
			name: "Maximum values",
			params: map[string]interface{}{
				"maxMarginShare":        1.0,
				"totalMarginUsageLimit": 1.0,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.params)
			if err != nil {
				t.Errorf("Expected valid parameters but got error: %v", err)
			}
		})
	}
}

func TestPositionRuleParameterValidator_Invalid(t *testing.T) {
	validator := &PositionRuleParameterValidator{}

	testCases := []struct {
		name   string
		params map[string]interface{}
	}{
		{
			name: "Invalid maxLeverage (zero)",
			params: map[string]interface{}{
				"maxLeverage": 0.0,
			},
		},
		{
			name: "Invalid maxLeverage (negative)",
			params: map[string]interface{}{
				"maxLeverage": -3.0,
			},
		},
		{
			name: "Invalid maxMarginShare (too large)",
			params: map[string]interface{}{
				"maxMarginShare": 1.5,
			},
		},
		{
			name: "Invalid totalMarginUsageLimit (too large)",
			params: map[string]interface{}{
				"totalMarginUsageLimit": 2.0,
			},
		},
		{
			name: "Invalid minFundingRateDelta (negative)",
			params: map[string]interface{}{
				"minFundingRateDelta": -0.1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.params)
			if err == nil {
				t.Error("Expected validation error but got none")
			}
		})
	}
}

func TestCooldownParameterValidator_Valid(t *testing.T) {
	validator := &CooldownParameterValidator{}

	validParams := map[string]interface{}{
		"cooldownMinutes":   15.0,
		"throttle_interval": "5m",
	}

	err := validator.Validate(validParams)
	if err != nil {
		t.Errorf("Expected valid parameters but got error: %v", err)
	}
}

func TestCooldownParameterValidator_Invalid(t *testing.T) {
	validator := &CooldownParameterValidator{}

	testCases := []struct {
		name   string
		params map[string]interface{}
	}{
		{
			name:   "Invalid cooldownMinutes (negative)",
			params: map[string]interface{}{"cooldownMinutes": -5.0},
		},
		{
			name:   "Invalid throttle_interval",
			params: map[string]interface{}{"throttle_interval": "invalid"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.params)
			if err == nil {
				t.Error("Expected validation error but got none")
			}
		})
	}
}

func TestHotReloader_GetLastReloadTime(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "position-rules.json")
	os.WriteFile(configPath, []byte("{}"), 0644)

	cfg := DefaultHotReloadConfig()
	reloader, _ := NewHotReloader(configPath, cfg)
	defer reloader.Stop()

	lastTime := reloader.GetLastReloadTime()
	if !lastTime.IsZero() {
		t.Error("Expected zero time for last reload")
	}
}
