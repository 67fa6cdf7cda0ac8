package main

import (
	"flag"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig 对应 configs/server.yaml
type ServerConfig struct {
	Server struct {
		Port  string `yaml:"port"`
		Debug bool   `yaml:"debug"`
	} `yaml:"server"`
	Paths struct {
		Catalog string `yaml:"catalog"`
		Users   string `yaml:"users"`
		History string `yaml:"history"`
	} `yaml:"paths"`
	Recommend struct {
		TopK          int   `yaml:"top_k"`
		DiversitySeed int64 `yaml:"diversity_seed"`
	} `yaml:"recommend"`
	History struct {
		LookbackDays int `yaml:"lookback_days"`
		RetainDays   int `yaml:"retain_days"`
	} `yaml:"history"`
	Log struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"log"`
}

func loadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitServerConfig 初始化服务器配置，优先级：命令行参数 > 配置文件 > 默认值
func InitServerConfig() *ServerConfig {
	// 命令行参数默认值设置为空，以便优先使用配置文件中的值
	configPath := flag.String("config", "configs/server.yaml", "Path to server config file")
	portFlag := flag.String("port", "", "Server port")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	catalogPathFlag := flag.String("catalog", "", "Path to catalog CSV")
	userConfigPathFlag := flag.String("users", "", "Path to users.yaml")
	historyPathFlag := flag.String("history", "", "Path to history.jsonl")
	flag.Parse()

	// 1. 初始化默认值
	serverCfg := &ServerConfig{}
	serverCfg.Server.Port = "8080"
	serverCfg.Server.Debug = false
	serverCfg.Paths.Catalog = "data/track_df_cleaned.csv"
	serverCfg.Paths.Users = "configs/users.yaml"
	serverCfg.Paths.History = "data/history.jsonl"
	serverCfg.Recommend.TopK = 10
	serverCfg.Recommend.DiversitySeed = 42
	serverCfg.History.LookbackDays = 7
	serverCfg.History.RetainDays = 30
	serverCfg.Log.MaxSizeMB = 10
	serverCfg.Log.MaxBackups = 5

	// 2. 尝试加载配置文件，不存在时直接使用默认值
	if loadedCfg, err := loadServerConfig(*configPath); err == nil {
		if loadedCfg.Server.Port != "" {
			serverCfg.Server.Port = loadedCfg.Server.Port
		}
		if loadedCfg.Server.Debug {
			serverCfg.Server.Debug = true
		}
		if loadedCfg.Paths.Catalog != "" {
			serverCfg.Paths.Catalog = loadedCfg.Paths.Catalog
		}
		if loadedCfg.Paths.Users != "" {
			serverCfg.Paths.Users = loadedCfg.Paths.Users
		}
		if loadedCfg.Paths.History != "" {
			serverCfg.Paths.History = loadedCfg.Paths.History
		}
		if loadedCfg.Recommend.TopK > 0 {
			serverCfg.Recommend.TopK = loadedCfg.Recommend.TopK
		}
		if loadedCfg.Recommend.DiversitySeed > 0 {
			serverCfg.Recommend.DiversitySeed = loadedCfg.Recommend.DiversitySeed
		}
		if loadedCfg.History.LookbackDays > 0 {
			serverCfg.History.LookbackDays = loadedCfg.History.LookbackDays
		}
		if loadedCfg.History.RetainDays > 0 {
			serverCfg.History.RetainDays = loadedCfg.History.RetainDays
		}
		if loadedCfg.Log.File != "" {
			serverCfg.Log.File = loadedCfg.Log.File
		}
		if loadedCfg.Log.MaxSizeMB > 0 {
			serverCfg.Log.MaxSizeMB = loadedCfg.Log.MaxSizeMB
		}
		if loadedCfg.Log.MaxBackups > 0 {
			serverCfg.Log.MaxBackups = loadedCfg.Log.MaxBackups
		}
	} else {
		log.Printf("Info: Could not load config file '%s': %v. Using defaults or flags.", *configPath, err)
	}

	// 3. 应用命令行参数 (优先级最高)
	if *portFlag != "" {
		serverCfg.Server.Port = *portFlag
	}
	if *debugFlag {
		serverCfg.Server.Debug = true
	}
	if *catalogPathFlag != "" {
		serverCfg.Paths.Catalog = *catalogPathFlag
	}
	if *userConfigPathFlag != "" {
		serverCfg.Paths.Users = *userConfigPathFlag
	}
	if *historyPathFlag != "" {
		serverCfg.Paths.History = *historyPathFlag
	}

	return serverCfg
}
