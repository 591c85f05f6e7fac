package config

type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
	Tables []TableConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	tables, err := LoadTables(serverCfg.TablesJSON)
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Log:    logCfg,
		Tables: tables,
	}, nil
}
