package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env              string // DEV (local; default), TEST, QA, PROD
	Debug            bool
	TestMode         bool
	AppName          string
	Build            string
	SecretKey        string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	RollbarToken     string
	SendgridApiKey   string
	Storage          string // postgres | memory

	Server struct {
		Addr             string
		Host             string
		DebugHost        string
		ReadTimeout      time.Duration
		WriteTimeout     time.Duration
		ShutdownTimeout  time.Duration
		CORSAllowOrigins []string
	}

	Auth struct {
		TokenExpiration time.Duration
		CookieName      string
		CookieSecure    bool
		CookieSameSite  string // lax | strict | none
		CookieDomain    string
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}
}

func (c *Config) IsMemoryStorage() bool { return strings.EqualFold(c.Storage, "memory") }

func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v := viper.New()
	v.SetEnvPrefix("sistira")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	conf := &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		Storage:         v.GetString("storage"),
	}
	conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: v.GetString("defaultFromEmail")}

	conf.Server.Addr = v.GetString("server.addr")
	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ReadTimeout = v.GetDuration("server.readTimeout")
	conf.Server.WriteTimeout = v.GetDuration("server.writeTimeout")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.CORSAllowOrigins = v.GetStringSlice("server.corsAllowOrigins")

	conf.Auth.TokenExpiration = v.GetDuration("auth.tokenExpiration")
	conf.Auth.CookieName = v.GetString("auth.cookieName")
	conf.Auth.CookieSecure = v.GetBool("auth.cookieSecure")
	conf.Auth.CookieSameSite = v.GetString("auth.cookieSameSite")
	conf.Auth.CookieDomain = v.GetString("auth.cookieDomain")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "SisTIRA")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "n8#p4-zk(2w=u!qe0v@x7$l+hj3c^r&t9ys*6dmb1g5f)ao_ei")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("storage", "postgres")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.corsAllowOrigins", []string{"http://localhost:3000"})

	v.SetDefault("auth.tokenExpiration", 7*24*time.Hour)
	v.SetDefault("auth.cookieName", "authToken")
	v.SetDefault("auth.cookieSecure", env != "DEV" && env != "TEST")
	v.SetDefault("auth.cookieSameSite", "lax")
	v.SetDefault("auth.cookieDomain", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "sistira")
	v.SetDefault("database.user", "sistira")
	v.SetDefault("database.password", "sistira")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
}

// loadDotEnv loads config/.env.<env> if it exists (ignored if it does not).
func loadDotEnv(env string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.Getwd: %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}
