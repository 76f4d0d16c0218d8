// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import "strings"

const (
	DefaultIMSEndpoint = "https://ims-na1.adobelogin.com"
	DefaultMetascope   = "ent_aem_cloud_api"
	DefaultBlobType    = "BlockBlob"

	// BlobTypeNone disables the x-ms-blob-type header on part uploads.
	BlobTypeNone = "none"
)

// Config is the whole configuration handed to the SDK (no viper/INI here)
type Config struct {
	Core     CoreConfig
	IMS      IMSConfig
	S3       S3Config
	Transfer TransferConfig
	Server   ServerConfig
}

// CoreConfig points at the AEM author instance.
type CoreConfig struct {
	BaseURL string
	// APIKey is sent as x-api-key; empty means IMS.ClientID.
	APIKey   string
	RetryMax int
}

type IMSConfig struct {
	Endpoint           string
	ClientID           string
	ClientSecret       string
	TechnicalAccountID string
	OrgID              string
	PrivateKey         string
	Metascopes         []string
}

type S3Config struct {
	AccessKey   string
	SecretKey   string
	AccessToken string
	Region      string
	EndpointURL string
}

// TransferConfig tunes the binary upload path.
type TransferConfig struct {
	BlobType        string
	FileConcurrency int
	PartRetryMax    int
}

type ServerConfig struct {
	Addr               string
	MaxMultipartMemory int64
}

func (c Config) APIKey() string {
	if c.Core.APIKey != "" {
		return c.Core.APIKey
	}
	return c.IMS.ClientID
}

func (c IMSConfig) EndpointURL() string {
	if c.Endpoint == "" {
		return DefaultIMSEndpoint
	}
	return strings.TrimRight(c.Endpoint, "/")
}

func (c IMSConfig) Scopes() []string {
	if len(c.Metascopes) == 0 {
		return []string{DefaultMetascope}
	}
	return c.Metascopes
}

// BlobTypeHeader returns the x-ms-blob-type value, "" when disabled.
func (t TransferConfig) BlobTypeHeader() string {
	switch {
	case t.BlobType == "":
		return DefaultBlobType
	case strings.EqualFold(t.BlobType, BlobTypeNone):
		return ""
	default:
		return t.BlobType
	}
}

func (t TransferConfig) Concurrency() int {
	if t.FileConcurrency < 1 {
		return 1
	}
	return t.FileConcurrency
}
