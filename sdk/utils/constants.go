// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

const (
	IniName            = ".damcli.ini"
	IniSource          = "ini_source"
	CurrentEnvironment = "current_environment"
	UpdatedEnvKey      = "updated_environment"

	AemHost            = "aem_host"
	AemAPIKey          = "aem_api_key"
	ImsEndpoint        = "ims_endpoint"
	ImsMetascopes      = "ims_metascopes"
	ClientID           = "client_id"
	ClientSecret       = "client_secret"
	TechnicalAccountID = "technical_account_id"
	OrgID              = "org_id"
	PrivateKey         = "private_key"

	AwsAccessKeyID     = "aws_access_key_id"
	AwsSecretAccessKey = "aws_secret_access_key"
	AwsSessionToken    = "aws_session_token"
	AwsRegion          = "aws_region"
	AwsEndpointURL     = "aws_endpoint_url"

	BlobType           = "dam_blob_type"
	FileConcurrency    = "dam_file_concurrency"
	HttpRetryMax       = "dam_http_retry_max"
	PartRetryMax       = "dam_part_retry_max"
	ServerAddr         = "dam_server_addr"
	ServerPort         = "port"
	MaxMultipartMemory = "dam_max_multipart_memory"
	Debug              = "dam_debug"
)
