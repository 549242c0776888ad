package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
)

// browserChoices are the browser setups offered by the wizard, in menu order.
var browserChoices = []string{
	"installed Chrome or Chromium",
	"download Chromium on first use",
	"no browser (DOC, DOCX, CSV, JSON, SVG and Markdown only)",
}

// wizardAnswers is what the wizard collected.
type wizardAnswers struct {
	Addr      string
	Driver    StoreDriver
	StorePath string
	Browser   int
	Templates string
}

// apply writes the answers over cfg.
func (a wizardAnswers) apply(cfg *Config) {
	cfg.Server.Addr = a.Addr
	cfg.Store.Driver = a.Driver
	cfg.Store.Path = ""
	if a.Driver != StoreMemory {
		cfg.Store.Path = a.StorePath
	}
	cfg.Browser.AutoDownload = a.Browser == 1
	cfg.Browser.Disabled = a.Browser == 2
	cfg.Templates.Dir = a.Templates
	cfg.Templates.Watch = a.Templates != ""
}

func defaultStorePath(d StoreDriver) string {
	if d == StoreSQLite {
		return filepath.Join(".printkit", "snapshots.db")
	}
	return filepath.Join(".printkit", "snapshots")
}

func validateAddr(s string) error {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("want host:port")
	}
	return nil
}

// RunWizard asks for the main settings on the terminal, starting from
// the config already at path (or the defaults), and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fmt.Println("Configuring printkit. Press enter to keep a value.")
	fmt.Println()

	var a wizardAnswers

	addrPrompt := promptui.Prompt{
		Label:    "Listen address",
		Default:  cfg.Server.Addr,
		Validate: validateAddr,
	}
	if a.Addr, err = addrPrompt.Run(); err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}

	drivers := []StoreDriver{StoreMemory, StoreFile, StoreSQLite}
	driverPrompt := promptui.Select{
		Label: "Where should documents be saved",
		Items: []string{
			"memory (lost on restart)",
			"file (one JSON file per document)",
			"sqlite (single database file)",
		},
	}
	idx, _, err := driverPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("store selection: %w", err)
	}
	a.Driver = drivers[idx]

	if a.Driver != StoreMemory {
		def := cfg.Store.Path
		if def == "" || cfg.Store.Driver != a.Driver {
			def = defaultStorePath(a.Driver)
		}
		pathPrompt := promptui.Prompt{Label: "Store path", Default: def}
		if a.StorePath, err = pathPrompt.Run(); err != nil {
			return nil, fmt.Errorf("store path: %w", err)
		}
	}

	browserPrompt := promptui.Select{
		Label: "Browser for PDF, PNG and JPEG",
		Items: browserChoices,
	}
	if a.Browser, _, err = browserPrompt.Run(); err != nil {
		return nil, fmt.Errorf("browser selection: %w", err)
	}

	tmplPrompt := promptui.Prompt{
		Label:   "Template override directory (empty for none)",
		Default: cfg.Templates.Dir,
	}
	tmpl, err := tmplPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}
	a.Templates = strings.TrimSpace(tmpl)

	a.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
