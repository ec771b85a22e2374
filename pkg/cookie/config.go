package cookie

// Config holds the cookie settings taken from the environment.
type Config struct {
	Domain string `env:"COOKIE_DOMAIN" envDefault:""`
}
