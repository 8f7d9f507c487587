package plugin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	supportedProtocol = 1
	manifestFilename  = "manifest.yaml"
)

// Discover scans a single pluginsDir for plugins with manifest.yaml and validates them.
// Returns a registry of valid plugins. Invalid plugins are logged but not fatal.
func Discover(pluginsDir string, logger func(level, msg string, args ...any)) (*Registry, error) {
	return DiscoverMany([]string{pluginsDir}, logger)
}

// DiscoverMany scans multiple plugin roots for manifest.yaml files and validates plugins.
// Roots are processed in input order and each root is walked in lexical order,
// which fixes the registration (and therefore fan-out) order. Duplicate plugin
// names keep the first discovered plugin.
func DiscoverMany(pluginRoots []string, logger func(level, msg string, args ...any)) (*Registry, error) {
	if logger == nil {
		logger = func(level, msg string, args ...any) {}
	}

	absRoots := make([]string, 0, len(pluginRoots))
	seenRoots := make(map[string]struct{}, len(pluginRoots))
	for _, root := range pluginRoots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve plugin root %q: %w", root, err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("plugin root does not exist: %s", absRoot)
			}
			return nil, fmt.Errorf("failed to stat plugin root %s: %w", absRoot, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("plugin root is not a directory: %s", absRoot)
		}
		if _, ok := seenRoots[absRoot]; ok {
			continue
		}
		seenRoots[absRoot] = struct{}{}
		absRoots = append(absRoots, absRoot)
	}
	if len(absRoots) == 0 {
		return nil, fmt.Errorf("at least one plugin root is required")
	}

	registry := NewRegistry()
	for _, root := range absRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			pluginPath := filepath.Dir(path)
			p, err := loadPlugin(pluginPath)
			if err != nil {
				logger("warn", "failed to load plugin", "root", root, "path", pluginPath, "error", err.Error())
				return nil
			}

			if existing, ok := registry.Get(p.ID); ok {
				logger(
					"warn",
					"duplicate plugin ignored (keeping first discovered)",
					"plugin", p.ID,
					"ignored_path", p.Path,
					"kept_path", existing.Path,
				)
				return nil
			}
			if err := registry.Add(p); err != nil {
				logger("warn", "failed to register plugin", "plugin", p.ID, "error", err.Error())
				return nil
			}

			logger("info", "loaded plugin", "plugin", p.ID, "path", p.Path, "version", p.Version,
				"notifications", strings.Join(p.Notifications.Names(), ","))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin root %s: %w", root, err)
		}
	}

	return registry, nil
}

// loadPlugin reads and validates a single plugin directory.
func loadPlugin(pluginPath string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(pluginPath, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	if err := validateManifest(&manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	if err := validateTrust(pluginPath); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	return &Plugin{
		ID:            manifest.Name,
		Path:          pluginPath,
		Version:       manifest.Version,
		Protocol:      manifest.Protocol,
		Description:   manifest.Description,
		Notifications: manifest.Notifications,
	}, nil
}

// validateManifest checks required manifest fields.
func validateManifest(m *Manifest) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.Protocol == 0 {
		return fmt.Errorf("protocol version is required")
	}
	if m.Protocol != supportedProtocol {
		return fmt.Errorf("unsupported protocol version %d (supported: %d)", m.Protocol, supportedProtocol)
	}
	if len(m.Notifications) == 0 {
		return fmt.Errorf("at least one notification must be declared")
	}

	seen := make(map[string]bool, len(m.Notifications))
	for _, sub := range m.Notifications {
		if sub.Name == "" {
			return fmt.Errorf("notification name is required")
		}
		if seen[sub.Name] {
			return fmt.Errorf("notification %q declared twice", sub.Name)
		}
		seen[sub.Name] = true
	}
	return nil
}

// validateTrust rejects plugin directories that any local user could rewrite.
func validateTrust(pluginPath string) error {
	resolved, err := filepath.EvalSymlinks(pluginPath)
	if err != nil {
		return fmt.Errorf("failed to resolve plugin path symlink: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("plugin directory not found: %w", err)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("plugin directory is world-writable: %s", resolved)
	}
	return nil
}
