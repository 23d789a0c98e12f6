// Command to copy persisted analysis data between storage backends
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"secondhand-price/internal/config"
	"secondhand-price/internal/kv"
	"secondhand-price/internal/model"
	"secondhand-price/internal/store"
)

const version = "1.0.0"

// migratedKeys are copied in this order
var migratedKeys = []string{store.HistoryKey, store.SettingsKey}

type options struct {
	dryRun    bool
	force     bool
	backupDir string
}

type keyResult struct {
	key     string
	skipped bool
	backup  bool
	summary string
}

func main() {
	from := flag.String("from", config.BackendFile, "Source backend (file, sqlite, redis)")
	to := flag.String("to", config.BackendSQLite, "Destination backend (file, sqlite, redis)")
	dataDir := flag.String("dir", "", "Data directory (defaults to DATA_DIR)")
	dryRun := flag.Bool("dry-run", false, "Show what would be done without making changes")
	force := flag.Bool("force", false, "Overwrite values that already exist in the destination")
	versionFlag := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("migrate version %s\n", version)
		return
	}

	fmt.Printf("=== 二手估價 資料遷移工具 v%s ===\n\n", version)

	base, err := config.Load()
	if err != nil {
		fmt.Printf("錯誤: 無法載入設定: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(base)
	if *dataDir != "" {
		base.DataDir = *dataDir
	}

	if *from == *to {
		fmt.Println("錯誤: 來源與目的地不可相同")
		os.Exit(1)
	}
	if *from == config.BackendMemory || *to == config.BackendMemory {
		fmt.Println("錯誤: memory 後端無法遷移")
		os.Exit(1)
	}

	src, srcCloser, err := openBackend(base, *from)
	if err != nil {
		fmt.Printf("錯誤: 無法開啟來源 %s: %v\n", *from, err)
		os.Exit(1)
	}
	defer srcCloser.Close()

	dst, dstCloser, err := openBackend(base, *to)
	if err != nil {
		fmt.Printf("錯誤: 無法開啟目的地 %s: %v\n", *to, err)
		os.Exit(1)
	}
	defer dstCloser.Close()

	if *dryRun {
		fmt.Println("=== 預演模式 (不會修改任何資料) ===")
	}
	fmt.Printf("%s -> %s (%s)\n\n", *from, *to, base.DataDir)

	opts := options{
		dryRun:    *dryRun,
		force:     *force,
		backupDir: filepath.Join(base.DataDir, "backup_"+*to+"_"+time.Now().Format("20060102_150405")),
	}

	results, err := migrate(src, dst, opts)
	for _, r := range results {
		switch {
		case r.skipped:
			fmt.Printf("略過 %s: 來源沒有資料\n", r.key)
		case *dryRun:
			fmt.Printf("將遷移 %s: %s\n", r.key, r.summary)
		default:
			fmt.Printf("已遷移 %s: %s\n", r.key, r.summary)
		}
		if r.backup {
			fmt.Printf("  目的地原有資料已備份至 %s\n", opts.backupDir)
		}
	}
	if err != nil {
		fmt.Printf("\n錯誤: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("遷移完成!")
	fmt.Println(strings.Repeat("=", 50))
	if !*dryRun {
		fmt.Printf("\n下一步: 設定 STORAGE_BACKEND=%s 並重新啟動伺服器\n", *to)
	}
}

func openBackend(base *config.Config, backend string) (kv.Adapter, io.Closer, error) {
	cfg := *base
	cfg.StorageBackend = backend
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return kv.Open(&cfg)
}

// migrate copies every key from src to dst. Values are validated before
// anything is written, and existing destination values are backed up first.
func migrate(src, dst kv.Adapter, opts options) ([]keyResult, error) {
	values := make(map[string]string, len(migratedKeys))
	var results []keyResult

	for _, key := range migratedKeys {
		value, err := src.Get(key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		summary, err := validate(key, value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s in source: %w", key, err)
		}
		values[key] = value
		results = append(results, keyResult{key: key, summary: summary})
	}

	existing := make(map[string]string)
	for _, key := range migratedKeys {
		if _, ok := values[key]; !ok {
			continue
		}
		value, err := dst.Get(key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read destination %s: %w", key, err)
		}
		existing[key] = value
	}

	if len(existing) > 0 && !opts.force {
		keys := make([]string, 0, len(existing))
		for _, key := range migratedKeys {
			if _, ok := existing[key]; ok {
				keys = append(keys, key)
			}
		}
		return nil, fmt.Errorf("destination already has %s; use -force to overwrite", strings.Join(keys, ", "))
	}

	for _, key := range migratedKeys {
		if _, ok := values[key]; !ok {
			results = append(results, keyResult{key: key, skipped: true})
		}
	}

	if opts.dryRun {
		return results, nil
	}

	if len(existing) > 0 {
		backup, err := kv.NewFile(opts.backupDir)
		if err != nil {
			return nil, fmt.Errorf("create backup: %w", err)
		}
		for key, value := range existing {
			if err := backup.Set(key, value); err != nil {
				return nil, fmt.Errorf("backup %s: %w", key, err)
			}
		}
		for i := range results {
			if _, ok := existing[results[i].key]; ok {
				results[i].backup = true
			}
		}
	}

	for _, key := range migratedKeys {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := dst.Set(key, value); err != nil {
			return results, fmt.Errorf("write %s: %w", key, err)
		}
		logrus.WithField("key", key).Debug("migrated")
	}

	return results, nil
}

// validate checks that value decodes as the collection stored under key
func validate(key, value string) (string, error) {
	switch key {
	case store.HistoryKey:
		var history []model.HistoryEntry
		if err := json.Unmarshal([]byte(value), &history); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d 筆分析紀錄", len(history)), nil
	case store.SettingsKey:
		var settings model.Settings
		if err := json.Unmarshal([]byte(value), &settings); err != nil {
			return "", err
		}
		return "設定", nil
	default:
		return "", fmt.Errorf("unknown key %q", key)
	}
}
