package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/darkden-lab/pgbrowser/internal/i18n"
)

type versionInfo struct {
	PgAdmin4 struct {
		Version     string `json:"version"`
		VersionInt  int    `json:"version_int"`
		DownloadURL string `json:"download_url"`
	} `json:"pgadmin4"`
}

// checkVersion fetches the published version data. A nil result without
// error means the server did not answer 200.
func (m *Module) checkVersion(ctx context.Context) (*versionInfo, error) {
	u, err := url.Parse(m.cfg.UpgradeCheckURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upgrade check url: %w", err)
	}
	q := u.Query()
	q.Set("version", m.cfg.AppVersion)
	u.RawQuery = q.Encode()

	m.logger.Debug().Str("url", u.String()).Msg("checking version data")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	m.logger.Debug().Int("status", resp.StatusCode).Msg("version check response")
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode version data: %w", err)
	}
	return &info, nil
}

type upgradeData struct {
	*i18n.Translator
	CurrentVersion string
	UpgradeVersion string
	ProductName    string
	DownloadURL    string
}

// upgradeNotice returns the rendered upgrade message when a newer version is
// published, and "" otherwise. Failures are logged and ignored.
func (m *Module) upgradeNotice(ctx context.Context, t *i18n.Translator) string {
	if !m.cfg.UpgradeCheckEnabled || m.cfg.UpgradeCheckURL == "" {
		return ""
	}

	info, err := m.checkVersion(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("exception when checking for update")
		return ""
	}
	if info == nil || info.PgAdmin4.VersionInt <= m.cfg.AppVersionInt {
		return ""
	}

	body, err := render(upgradeHTML, upgradeData{
		Translator:     t,
		CurrentVersion: m.cfg.AppVersion,
		UpgradeVersion: info.PgAdmin4.Version,
		ProductName:    m.cfg.AppName,
		DownloadURL:    info.PgAdmin4.DownloadURL,
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to render upgrade notice")
		return ""
	}
	return string(body)
}
