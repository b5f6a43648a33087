package params

// Names of the options every driver inherits.
const (
	OptSeed         = "seed"
	OptRepetitions  = "repetitions"
	OptWarmup       = "warmup"
	OptTimeLimit    = "time-limit"
	OptReduction    = "reduction"
	OptThreads      = "threads"
	OptPinCPUs      = "pin-cpus"
	OptEnv          = "env"
	OptVerbose      = "verbose"
	OptOutputIndent = "output-indent"

	OptFileXTrain  = "file-x-train"
	OptFileXTest   = "file-x-test"
	OptFileYTrain  = "file-y-train"
	OptFileYTest   = "file-y-test"
	OptDatasetName = "dataset-name"
	OptSamples     = "samples"
	OptFeatures    = "features"
	OptTestSize    = "test-size"
	OptGenerator   = "generator"
)

// CommonOptions declares the harness options shared by all drivers:
// run context, repetition policy, data source and output formatting.
func CommonOptions() Schema {
	return Schema{
		{Name: OptSeed, Kind: Int, Default: 12345,
			Usage: "Seed for random state"},
		{Name: OptRepetitions, Kind: Int, Default: 5,
			Usage: "Number of timed trials per measured function"},
		{Name: OptWarmup, Kind: Int, Default: 1,
			Usage: "Leading trials discarded before reduction"},
		{Name: OptTimeLimit, Kind: Float, Default: 0.0,
			Usage: "Stop repeating once cumulative trial time exceeds this many seconds (0 = no limit)"},
		{Name: OptReduction, Kind: String, Default: "min", Choices: []string{"min", "box"},
			Usage: "How trial durations are reduced to one time"},
		{Name: OptThreads, Kind: Int, Default: 0,
			Usage: "GOMAXPROCS and OMP_NUM_THREADS for the run (0 = runtime default)"},
		{Name: OptPinCPUs, Kind: StringList,
			Usage: "CPU ids to pin the process to, e.g. 0,1,2"},
		{Name: OptEnv, Kind: StringList,
			Usage: "KEY=VALUE environment variables set for the run"},
		{Name: OptVerbose, Kind: Bool, Default: false,
			Usage: "Debug logging on stderr"},
		{Name: OptOutputIndent, Kind: Bool, Default: false,
			Usage: "Indent the JSON result record"},

		{Name: OptFileXTrain, Kind: String,
			Usage: "CSV file with training features"},
		{Name: OptFileXTest, Kind: String,
			Usage: "CSV file with test features"},
		{Name: OptFileYTrain, Kind: String,
			Usage: "CSV file with training targets"},
		{Name: OptFileYTest, Kind: String,
			Usage: "CSV file with test targets"},
		{Name: OptDatasetName, Kind: String, Default: "synthetic",
			Usage: "Dataset name recorded in the result"},
		{Name: OptSamples, Kind: Int, Default: 10000,
			Usage: "Rows to generate when no files are given"},
		{Name: OptFeatures, Kind: Int, Default: 20,
			Usage: "Columns to generate when no files are given"},
		{Name: OptTestSize, Kind: FloatOrIntKind, Default: mustFraction(0.25),
			Usage: "Generated test split as fraction of rows or row count"},
		{Name: OptGenerator, Kind: String, Default: "gaussian",
			Choices: []string{"gaussian", "uniform", "blobs"},
			Usage:   "Feature distribution for generated data"},
	}
}

func mustFraction(f float64) FloatOrInt {
	v, err := Fraction(f)
	if err != nil {
		panic(err)
	}

	return v
}
