package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                string `json:"uri"`
	Database           string `json:"database"`
	MessagesCollection string `json:"messagesCollection"`
	UsersCollection    string `json:"usersCollection"`
	SocketRoute        string `json:"socketRoute"`
}

type ServerConfig struct {
	AppPort    int `json:"app_port"`
	SocketPort int `json:"socket_port"`
}

type AuthConfig struct {
	JwtSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`
}

func LoadConfig(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	// env overrides keep secrets out of the config file
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JwtSecret = secret
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		config.Mongo.Uri = uri
	}

	return &config, nil
}
