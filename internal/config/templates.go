package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# uitfcat configuration
# Delete a key to fall back to its built-in default.

[pipeline]
# data_dir = "~/.local/share/uitfcat"
page_size = 20
lookback_years = 5
fetch_timeout = "30s"
fetch_workers = 4
queries = ["uitf", "unit investment trust", "peso bond fund", "equity fund philippines"]

[sources]
listing_url = "https://www.bloomberg.com/markets2/api/search"
detail_url = "https://www.bloomberg.com/markets2/api/security"
fund_info_url = "https://www.uitf.com.ph/daily_navpu_details.php"
series_url = "https://www.bloomberg.com/markets2/api/history"

[cache]
# backend: "disk", "memory" or "redis"
backend = "disk"
# dir = "~/.cache/uitfcat"
# redis_addr = "localhost:6379"

[assist]
enabled = false
# model = "gpt-4o-mini"
# api_key set via OPENAI_API_KEY
`

const mappingsTemplate = `# uitfcat mapping tables
# These are data, not code: extend them without touching matching logic.

[bank_websites]
"www.bdo.com.ph" = "BDO"
"www.bpiassetmanagement.com" = "BPI"
"www.metrobank.com.ph" = "Metrobank"
"www.securitybank.com" = "Security Bank"
"www.chinabank.ph" = "China Bank"
"www.landbank.com" = "Landbank"
"www.pnb.com.ph" = "PNB"
"www.rcbc.com" = "RCBC"
"www.unionbankph.com" = "UnionBank"
"www.eastwestbanker.com" = "EastWest"

[bank_names]
"BDO Unibank, Inc." = "BDO"
"Bank of the Philippine Islands" = "BPI"
"BPI Asset Management and Trust Corporation" = "BPI"
"Metropolitan Bank & Trust Co." = "Metrobank"
"Security Bank Corporation" = "Security Bank"
"China Banking Corporation" = "China Bank"
"Land Bank of the Philippines" = "Landbank"
"Philippine National Bank" = "PNB"
"Rizal Commercial Banking Corporation" = "RCBC"
"Union Bank of the Philippines" = "UnionBank"
"EastWest Banking Corporation" = "EastWest"

[overrides]
# Exact Catalog B fund name -> Catalog A symbol. Applied last, unconditionally.
# "Peso Money Market Fund" = "BDOPMMF:PM"
`

// DefaultMappings returns the built-in mapping tables, used until the
// operator edits mappings.toml.
func DefaultMappings() Mappings {
	return Mappings{
		BankWebsites: map[string]string{
			"www.bdo.com.ph":             "BDO",
			"www.bpiassetmanagement.com": "BPI",
			"www.metrobank.com.ph":       "Metrobank",
			"www.securitybank.com":       "Security Bank",
			"www.chinabank.ph":           "China Bank",
			"www.landbank.com":           "Landbank",
			"www.pnb.com.ph":             "PNB",
			"www.rcbc.com":               "RCBC",
			"www.unionbankph.com":        "UnionBank",
			"www.eastwestbanker.com":     "EastWest",
		},
		BankNames: map[string]string{
			"BDO Unibank, Inc.":                          "BDO",
			"Bank of the Philippine Islands":             "BPI",
			"BPI Asset Management and Trust Corporation": "BPI",
			"Metropolitan Bank & Trust Co.":              "Metrobank",
			"Security Bank Corporation":                  "Security Bank",
			"China Banking Corporation":                  "China Bank",
			"Land Bank of the Philippines":               "Landbank",
			"Philippine National Bank":                   "PNB",
			"Rizal Commercial Banking Corporation":       "RCBC",
			"Union Bank of the Philippines":              "UnionBank",
			"EastWest Banking Corporation":               "EastWest",
		},
		Overrides: map[string]string{},
	}
}

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate)
}

func createTemplateMappings(configDir string) error {
	return writeTemplate(configDir, "mappings.toml", mappingsTemplate)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
