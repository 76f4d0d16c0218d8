// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// EnvDumpPrefix: optional prefix for env lookup (e.g., "DAM")
const EnvDumpPrefix = ""

// Settings holds all logical keys. Tags:
// - vkey: Viper key
// - env: canonical env name (UPPER_SNAKE). If empty, derived from vkey
// - persist: "true" to write the key into the INI
// - default: optional default to set if key is unset
// - secret: "true" if sensitive
// - bind: "false" to NOT bind from env (we still can set defaults)
type Settings struct {
	AemHost            string `vkey:"aem_host"             env:"INSTANCIA_AEM"        persist:"true"`
	AemAPIKey          string `vkey:"aem_api_key"          env:"AEM_API_KEY"          persist:"true"`
	ImsEndpoint        string `vkey:"ims_endpoint"         env:"IMS_ENDPOINT"         persist:"true"  default:"https://ims-na1.adobelogin.com"`
	ImsMetascopes      string `vkey:"ims_metascopes"       env:"IMS_METASCOPES"       persist:"true"  default:"ent_aem_cloud_api"`
	ClientID           string `vkey:"client_id"            env:"CLIENT_ID"            persist:"true"`
	ClientSecret       string `vkey:"client_secret"        env:"CLIENT_SECRET"        persist:"false" secret:"true"`
	TechnicalAccountID string `vkey:"technical_account_id" env:"TECHNICAL_ACCOUNT_ID" persist:"true"`
	OrgID              string `vkey:"org_id"               env:"ORG_ID"               persist:"true"`
	PrivateKey         string `vkey:"private_key"          env:"PRIVATE_KEY"          persist:"false" secret:"true"`

	AwsAccessKeyID     string `vkey:"aws_access_key_id"     env:"AWS_ACCESS_KEY_ID"     persist:"true"  secret:"true"`
	AwsSecretAccessKey string `vkey:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY" persist:"true"  secret:"true"`
	AwsSessionToken    string `vkey:"aws_session_token"     env:"AWS_SESSION_TOKEN"     persist:"false" secret:"true"`
	AwsRegion          string `vkey:"aws_region"            env:"AWS_REGION"            persist:"true"`
	AwsEndpointURL     string `vkey:"aws_endpoint_url"      env:"AWS_ENDPOINT_URL"      persist:"true"`

	BlobType           string `vkey:"dam_blob_type"            env:"DAM_BLOB_TYPE"            persist:"true"  default:"BlockBlob"`
	FileConcurrency    string `vkey:"dam_file_concurrency"     env:"DAM_FILE_CONCURRENCY"     persist:"true"  default:"1"`
	HttpRetryMax       string `vkey:"dam_http_retry_max"       env:"DAM_HTTP_RETRY_MAX"       persist:"true"  default:"2"`
	PartRetryMax       string `vkey:"dam_part_retry_max"       env:"DAM_PART_RETRY_MAX"       persist:"true"  default:"0"`
	ServerAddr         string `vkey:"dam_server_addr"          env:"DAM_SERVER_ADDR"          persist:"true"`
	ServerPort         string `vkey:"port"                     env:"PORT"                     persist:"true"  default:"3000"`
	MaxMultipartMemory string `vkey:"dam_max_multipart_memory" env:"DAM_MAX_MULTIPART_MEMORY" persist:"true"  default:"33554432"`
	Debug              string `vkey:"dam_debug"                env:"DAM_DEBUG"                persist:"false"`

	IniSource          string `vkey:"ini_source"          env:"INI_SOURCE"          persist:"true"`
	UpdatedEnvironment string `vkey:"updated_environment" env:"UPDATED_ENVIRONMENT" persist:"true"  bind:"false"`
	CurrentEnvironment string `vkey:"current_environment" env:"CURRENT_ENVIRONMENT" persist:"false"`
}

type settingField struct {
	key     string
	env     string
	persist bool
	def     string
	bind    bool
}

func settingFields() []settingField {
	rt := reflect.TypeOf(Settings{})
	fields := make([]settingField, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		key := f.Tag.Get("vkey")
		if key == "" {
			continue
		}
		env := f.Tag.Get("env")
		if env == "" {
			env = strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
		fields = append(fields, settingField{
			key:     key,
			env:     env,
			persist: f.Tag.Get("persist") == "true",
			def:     f.Tag.Get("default"),
			bind:    !strings.EqualFold(f.Tag.Get("bind"), "false"),
		})
	}
	return fields
}

// resolveEnvName: --env > "default"
func resolveEnvName(optionalEnv ...string) string {
	if len(optionalEnv) > 0 && optionalEnv[0] != "" && strings.ToLower(optionalEnv[0]) != "null" {
		return optionalEnv[0]
	}
	return "default"
}

// mirror PREFIX_FOO -> FOO (optional)
func mirrorPrefix(prefix string) {
	if prefix == "" {
		return
	}
	upPrefix := strings.ToUpper(prefix) + "_"
	for _, e := range os.Environ() {
		name, val, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(name, upPrefix) {
			continue
		}
		unpref := strings.TrimPrefix(name, upPrefix)
		if os.Getenv(unpref) == "" {
			_ = os.Setenv(unpref, val)
		}
	}
}

// BindEnvFromStruct binds env for all fields of Settings using struct tags.
func BindEnvFromStruct(prefix string) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	mirrorPrefix(prefix)

	for _, f := range settingFields() {
		if f.bind {
			_ = viper.BindEnv(f.key, f.env)
		}
		if f.def != "" && !viper.IsSet(f.key) {
			viper.SetDefault(f.key, f.def)
		}
	}
}

func writePersisted(sec *ini.Section) {
	for _, f := range settingFields() {
		if !f.persist {
			continue
		}
		if val := viper.GetString(f.key); val != "" {
			sec.Key(f.key).SetValue(val)
		}
	}
}

// WriteIniFromStruct writes a new INI with only fields marked persist:"true".
func WriteIniFromStruct(iniPath, envName string) error {
	cfg := ini.Empty()
	cfg.Section("DEFAULT").Key(CurrentEnvironment).SetValue(envName)
	writePersisted(cfg.Section(envName))
	return cfg.SaveTo(iniPath)
}

// UpdateIniFromStruct updates or creates an INI section from current Viper values.
func UpdateIniFromStruct(iniPath, envName string) error {
	cfg, err := ini.Load(iniPath)
	if err != nil {
		return WriteIniFromStruct(iniPath, envName)
	}
	sec := cfg.Section(envName)
	writePersisted(sec)

	if !cfg.Section("DEFAULT").HasKey(CurrentEnvironment) {
		cfg.Section("DEFAULT").Key(CurrentEnvironment).SetValue(envName)
	}
	sec.Key(UpdatedEnvKey).SetValue(time.Now().UTC().Format(time.RFC3339))
	return cfg.SaveTo(iniPath)
}

// Load [DEFAULT] + [env] into Viper (TOML in-memory). ENV can still override on Get().
func loadIniSectionIntoViper(logger log.Logger, cfg *ini.File, env string) error {
	def := cfg.Section("DEFAULT")
	selected := def
	if env != "" && cfg.HasSection(env) {
		selected = cfg.Section(env)
		logger.Debugf("Using env: [%s]", env)
	} else if env == "" || strings.EqualFold(env, "DEFAULT") {
		logger.Debugf("Using env: [DEFAULT]")
	} else {
		logger.Warnf("Env %s not found, falling back to [DEFAULT]", env)
	}

	merged := make(map[string]string)
	for _, k := range def.Keys() {
		merged[k.Name()] = k.Value()
	}
	if selected != def {
		for _, k := range selected.Keys() {
			merged[k.Name()] = k.Value()
		}
	}

	var buf bytes.Buffer
	for k, v := range merged {
		vSafe := strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)
		_, _ = fmt.Fprintf(&buf, "%s = \"%s\"\n", k, vSafe)
	}
	viper.SetConfigType("toml")
	return viper.ReadConfig(&buf)
}

// RegisterIniCfgWithViper:
// 1) bind ENV from struct (live)
// 2) load the INI, or bootstrap it from ENV when missing
// 3) load the active section into Viper and set current_environment
func RegisterIniCfgWithViper(optionalEnv ...string) error {
	logger := log.NewLogger()
	iniPath := getIniPath()

	BindEnvFromStruct(EnvDumpPrefix)

	cfg, err := ini.Load(iniPath)
	if err != nil {
		logger.Debugf("INI not found at %s; reading configuration from env", iniPath)
		envName, bootErr := bootstrapFromEnv(iniPath, optionalEnv...)
		if bootErr != nil {
			logger.Warnf("Bootstrap failed: %v", bootErr)
			if envName == "" {
				envName = resolveEnvName(optionalEnv...)
			}
			viper.Set(CurrentEnvironment, envName)
			return nil
		}
		cfg, err = ini.Load(iniPath)
		if err != nil {
			logger.Warnf("INI written but cannot reload: %v (ENV-only mode)", err)
			return nil
		}
	}

	// active env: --env > DEFAULT.current_environment > default
	env := resolveEnvName(optionalEnv...)
	if env == "default" {
		if v := cfg.Section("DEFAULT").Key(CurrentEnvironment).String(); v != "" {
			env = v
		}
	}

	if err := loadIniSectionIntoViper(logger, cfg, env); err != nil {
		return fmt.Errorf("failed to load INI into viper: %w", err)
	}
	viper.Set(CurrentEnvironment, env)
	return nil
}

// bootstrapFromEnv reads every Settings key from the OS env and writes the INI.
// It honors bind:"false" and applies defaults only to unset keys.
func bootstrapFromEnv(iniPath string, optionalEnv ...string) (string, error) {
	for _, f := range settingFields() {
		if f.bind {
			if val, ok := os.LookupEnv(f.env); ok {
				viper.Set(f.key, val)
				continue
			}
		}
		if f.def != "" && !viper.IsSet(f.key) {
			viper.SetDefault(f.key, f.def)
		}
	}

	if viper.GetString(AemHost) == "" {
		return "", fmt.Errorf("missing %s: set INSTANCIA_AEM in env", AemHost)
	}

	envName := resolveEnvName(optionalEnv...)
	viper.Set(CurrentEnvironment, envName)
	viper.Set(IniSource, "env")

	if err := WriteIniFromStruct(iniPath, envName); err != nil {
		return "", fmt.Errorf("write ini failed: %w", err)
	}
	return envName, nil
}

// LoadConfig builds the SDK configuration from the current Viper state.
func LoadConfig() (config.Config, error) {
	cfg := config.Config{
		Core: config.CoreConfig{
			BaseURL:  strings.TrimRight(viper.GetString(AemHost), "/"),
			APIKey:   viper.GetString(AemAPIKey),
			RetryMax: viper.GetInt(HttpRetryMax),
		},
		IMS: config.IMSConfig{
			Endpoint:           viper.GetString(ImsEndpoint),
			ClientID:           viper.GetString(ClientID),
			ClientSecret:       viper.GetString(ClientSecret),
			TechnicalAccountID: viper.GetString(TechnicalAccountID),
			OrgID:              viper.GetString(OrgID),
			PrivateKey:         viper.GetString(PrivateKey),
			Metascopes:         SplitList(viper.GetString(ImsMetascopes)),
		},
		S3: config.S3Config{
			AccessKey:   viper.GetString(AwsAccessKeyID),
			SecretKey:   viper.GetString(AwsSecretAccessKey),
			AccessToken: viper.GetString(AwsSessionToken),
			Region:      viper.GetString(AwsRegion),
			EndpointURL: viper.GetString(AwsEndpointURL),
		},
		Transfer: config.TransferConfig{
			BlobType:        viper.GetString(BlobType),
			FileConcurrency: viper.GetInt(FileConcurrency),
			PartRetryMax:    viper.GetInt(PartRetryMax),
		},
		Server: config.ServerConfig{
			Addr:               serverAddr(),
			MaxMultipartMemory: viper.GetInt64(MaxMultipartMemory),
		},
	}
	if cfg.Core.BaseURL == "" {
		return cfg, errors.New("missing AEM host (INSTANCIA_AEM)")
	}
	return cfg, nil
}

func serverAddr() string {
	if addr := viper.GetString(ServerAddr); addr != "" {
		return addr
	}
	return ":" + viper.GetString(ServerPort)
}
