package version

var (
	AppName     = "Hikari"
	AppFullName = "Hikari Tsukino"
	AppVersion  = "0.5.0"
)
