package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dwizi/fixdesk/internal/fsutil"
)

const lockTimeout = 10 * time.Second

// FileStore reads settings from a YAML file and rewrites the main language
// in place, keeping every other key and comment in the file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

func (s *FileStore) Path() string {
	return s.path
}

// Read returns the file's settings. A missing file yields Defaults.
func (s *FileStore) Read() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := Defaults()
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Settings{}, fmt.Errorf("stat settings file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.SetDefault(keyAdminRole, cfg.AdminRoleID)
	v.SetDefault(keyMonitoredCategory, cfg.MonitoredCategory)
	v.SetDefault(keyMainLanguage, cfg.MainLanguage)
	v.SetDefault(keyOCRLanguages, cfg.OCRLanguages)
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	cfg.AdminRoleID = strings.TrimSpace(v.GetString(keyAdminRole))
	cfg.MonitoredCategory = strings.TrimSpace(v.GetString(keyMonitoredCategory))
	cfg.MainLanguage = strings.TrimSpace(v.GetString(keyMainLanguage))
	cfg.OCRLanguages = strings.TrimSpace(v.GetString(keyOCRLanguages))
	if cfg.MainLanguage == "" {
		cfg.MainLanguage = Defaults().MainLanguage
	}
	return cfg, nil
}

func (s *FileStore) WriteMainLanguage(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	unlock, err := fsutil.Lock(ctx, s.path)
	if err != nil {
		return fmt.Errorf("lock settings file: %w", err)
	}
	defer unlock()

	var document yaml.Node
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read settings file: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &document); err != nil {
			return fmt.Errorf("decode settings file: %w", err)
		}
	}
	root := mappingRoot(&document)
	if root == nil {
		return fmt.Errorf("settings file %s is not a mapping", s.path)
	}
	setScalar(root, keyMainLanguage, value)

	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(&document); err != nil {
		return fmt.Errorf("encode settings file: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode settings file: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, buffer.Bytes())
}

func mappingRoot(document *yaml.Node) *yaml.Node {
	if document.Kind == 0 {
		document.Kind = yaml.DocumentNode
	}
	if document.Kind != yaml.DocumentNode {
		return nil
	}
	if len(document.Content) == 0 {
		document.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	return root
}

func setScalar(mapping *yaml.Node, key, value string) {
	for index := 0; index+1 < len(mapping.Content); index += 2 {
		if mapping.Content[index].Value == key {
			node := mapping.Content[index+1]
			node.Kind = yaml.ScalarNode
			node.Tag = "!!str"
			node.Value = value
			node.Content = nil
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}
