package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/crowdcast/presenced/internal/config"
)

var httpClient = &http.Client{Timeout: 20 * time.Second}

// daemonURL resolves the base URL of a running daemon from the config
// file and any --port override.
func daemonURL() (string, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	port := configMgr.GetPort()
	if viper.IsSet("server_port") {
		if p := viper.GetInt("server_port"); p > 0 {
			port = p
		}
	}
	return fmt.Sprintf("http://localhost:%d", port), nil
}

func getJSON(path string, out any) error {
	base, err := daemonURL()
	if err != nil {
		return err
	}
	resp, err := httpClient.Get(base + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(path string, body any, out any) error {
	base, err := daemonURL()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(base+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
