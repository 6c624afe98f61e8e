package core

import (
	"fmt"
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
	AppName      string
	Env          string // DEV (local; default), TEST, QA, PROD
	Build        string
	Debug        bool
	TestMode     bool
	SecretKey    string
	SiteURL      string
	ContactEmail string
	RollbarToken string

	Database struct {
		Engine        string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	Redis struct {
		URL string
	}

	Server struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		TrustedProxies            []string // X-Forwarded-For is honoured only behind these
	}

	Auth struct {
		EmailCodeTTL              time.Duration
		EmailCodeMaxAttempts      int
		EmailCodeResendInterval   time.Duration
		LoginMaxAttempts          int
		LoginBlockDuration        time.Duration
		LoginResetAfter           time.Duration
		TelegramAuthMaxAge        time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	Mail struct {
		DefaultFromName  string
		DefaultFromEmail string
		SendgridApiKey   string
	}

	YooKassa struct {
		ShopID     string
		SecretKey  string
		APIURL     string
		ReturnURL  string
		TrustedIPs []string
	}

	Telegram struct {
		BotToken string
		ChatID   string
		APIURL   string
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Mail.DefaultFromName, Address: c.Mail.DefaultFromEmail}
}

func (c *Config) PaymentsEnabled() bool {
	return c.YooKassa.ShopID != "" && c.YooKassa.SecretKey != ""
}

func (c *Config) TrustedPaymentNetworks() []*net.IPNet {
	return parseNetworks(c.YooKassa.TrustedIPs)
}

func (c *Config) TrustedProxyNetworks() []*net.IPNet {
	return parseNetworks(c.Server.TrustedProxies)
}

// parseNetworks accepts CIDRs and bare addresses; invalid entries are skipped.
func parseNetworks(list []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(list))
	for _, cidr := range list {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if !strings.Contains(cidr, "/") {
			if strings.Contains(cidr, ":") {
				cidr += "/128"
			} else {
				cidr += "/32"
			}
		}
		if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, ipNet)
		}
	}
	return nets
}

func (c *Config) setDefaults(v *viper.Viper) {
	v.SetDefault("DEBUG", true)
	v.SetDefault("APP_NAME", "Нейромагия")
	v.SetDefault("BUILD", "dev")
	v.SetDefault("SECRET_KEY", "wq0y-c2q$kz!n!a7t^3m+u0p#)e9(wr)h6s&8b=d*nl@f4m5x")
	v.SetDefault("SITE_URL", "http://localhost:8000")
	v.SetDefault("CONTACT_EMAIL", "hello@neuro-magic.ru")

	v.SetDefault("DB_ENGINE", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "neuromagic")
	v.SetDefault("DB_PASSWORD", "neuromagic")
	v.SetDefault("DB_ADMIN_USER", "postgres")
	v.SetDefault("DB_ADMIN_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "neuromagic")
	v.SetDefault("DB_DISABLE_TLS", true)

	v.SetDefault("SERVER_HOST", "0.0.0.0:8000")
	v.SetDefault("SERVER_DEBUG_HOST", "0.0.0.0:4000")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("SERVER_READ_TIMEOUT", 5*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("JWT_EXPIRATION_DELTA", 24*time.Hour)
	v.SetDefault("JWT_REFRESH_EXPIRATION_DELTA", 7*24*time.Hour)

	v.SetDefault("EMAIL_CODE_TTL", 10*time.Minute)
	v.SetDefault("EMAIL_CODE_MAX_ATTEMPTS", 5)
	v.SetDefault("EMAIL_CODE_RESEND_INTERVAL", time.Minute)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_BLOCK_DURATION", 15*time.Minute)
	v.SetDefault("LOGIN_RESET_AFTER", 30*time.Minute)
	v.SetDefault("TELEGRAM_AUTH_MAX_AGE", 24*time.Hour)
	v.SetDefault("PASSWORD_RESET_TIMEOUT_DELTA", 3*24*time.Hour)

	v.SetDefault("DEFAULT_FROM_NAME", "Нейромагия")
	v.SetDefault("DEFAULT_FROM_EMAIL", "noreply@neuro-magic.ru")

	v.SetDefault("YOOKASSA_API_URL", "https://api.yookassa.ru/v3")
	v.SetDefault("YOOKASSA_RETURN_URL", "https://neuro-magic.ru/payment/success")
	v.SetDefault("YOOKASSA_TRUSTED_IPS", []string{
		"185.71.76.0/27", "185.71.77.0/27", "77.75.153.0/25", "77.75.156.11",
		"77.75.156.35", "77.75.154.128/25", "2a02:5180::/32",
	})

	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	conf := new(Config)
	conf.setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("TEST_MODE", true)
	}
	conf.Env = env
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf.AppName = v.GetString("APP_NAME")
	conf.Build = v.GetString("BUILD")
	conf.Debug = v.GetBool("DEBUG")
	conf.TestMode = v.GetBool("TEST_MODE")
	conf.SecretKey = v.GetString("SECRET_KEY")
	conf.SiteURL = strings.TrimRight(v.GetString("SITE_URL"), "/")
	conf.ContactEmail = v.GetString("CONTACT_EMAIL")
	conf.RollbarToken = v.GetString("ROLLBAR_TOKEN")

	conf.Database.Engine = v.GetString("DB_ENGINE")
	conf.Database.Host = v.GetString("DB_HOST")
	conf.Database.Port = v.GetString("DB_PORT")
	conf.Database.User = v.GetString("DB_USER")
	conf.Database.Password = v.GetString("DB_PASSWORD")
	conf.Database.AdminUser = v.GetString("DB_ADMIN_USER")
	conf.Database.AdminPassword = v.GetString("DB_ADMIN_PASSWORD")
	conf.Database.Name = v.GetString("DB_NAME")
	conf.Database.DisableTLS = v.GetBool("DB_DISABLE_TLS")

	conf.Redis.URL = v.GetString("REDIS_URL")

	conf.Server.Host = v.GetString("SERVER_HOST")
	conf.Server.DebugHost = v.GetString("SERVER_DEBUG_HOST")
	conf.Server.ShutdownTimeout = v.GetDuration("SERVER_SHUTDOWN_TIMEOUT")
	conf.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	conf.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	conf.Server.JWTExpirationDelta = v.GetDuration("JWT_EXPIRATION_DELTA")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("JWT_REFRESH_EXPIRATION_DELTA")
	conf.Server.TrustedProxies = v.GetStringSlice("SERVER_TRUSTED_PROXIES")

	conf.Auth.EmailCodeTTL = v.GetDuration("EMAIL_CODE_TTL")
	conf.Auth.EmailCodeMaxAttempts = v.GetInt("EMAIL_CODE_MAX_ATTEMPTS")
	conf.Auth.EmailCodeResendInterval = v.GetDuration("EMAIL_CODE_RESEND_INTERVAL")
	conf.Auth.LoginMaxAttempts = v.GetInt("LOGIN_MAX_ATTEMPTS")
	conf.Auth.LoginBlockDuration = v.GetDuration("LOGIN_BLOCK_DURATION")
	conf.Auth.LoginResetAfter = v.GetDuration("LOGIN_RESET_AFTER")
	conf.Auth.TelegramAuthMaxAge = v.GetDuration("TELEGRAM_AUTH_MAX_AGE")
	conf.Auth.PasswordResetTimeoutDelta = v.GetDuration("PASSWORD_RESET_TIMEOUT_DELTA")

	conf.Mail.DefaultFromName = v.GetString("DEFAULT_FROM_NAME")
	conf.Mail.DefaultFromEmail = v.GetString("DEFAULT_FROM_EMAIL")
	conf.Mail.SendgridApiKey = v.GetString("SENDGRID_API_KEY")

	conf.YooKassa.ShopID = v.GetString("YOOKASSA_SHOP_ID")
	conf.YooKassa.SecretKey = v.GetString("YOOKASSA_SECRET_KEY")
	conf.YooKassa.APIURL = v.GetString("YOOKASSA_API_URL")
	conf.YooKassa.ReturnURL = v.GetString("YOOKASSA_RETURN_URL")
	conf.YooKassa.TrustedIPs = v.GetStringSlice("YOOKASSA_TRUSTED_IPS")

	conf.Telegram.BotToken = v.GetString("TELEGRAM_BOT_TOKEN")
	conf.Telegram.ChatID = v.GetString("TELEGRAM_CHAT_ID")
	conf.Telegram.APIURL = v.GetString("TELEGRAM_API_URL")

	return conf
}

// DatabaseAddress returns the "host:port" of the database server.
func (c *Config) DatabaseAddress() string {
	return fmt.Sprintf("%s:%s", c.Database.Host, c.Database.Port)
}
