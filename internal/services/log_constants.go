package services

const (
	LogActionProviderIngest = "PROVIDER_INGEST"
	LogActionAfrrIngest     = "AFRR_INGEST"
	LogActionPriceResolve   = "PRICE_RESOLVE"
	LogActionFileArchive    = "FILE_ARCHIVE"
	LogActionPipelineRun    = "PIPELINE_RUN"
	LogOutcomeSuccess       = "SUCCESS"
	LogOutcomeFail          = "FAIL"
)

const (
	OperationProviderImport = "PROVIDER_IMPORT"
	OperationAfrrImport     = "AFRR_IMPORT"
	OperationPriceResolve   = "PRICE_RESOLVE"
)
