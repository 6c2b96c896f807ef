package env

type Args struct {
	Test       *bool
	NoSubmit   *bool
	Verbose    *bool
	ConfigFile *string
	EnvFile    *string
}
