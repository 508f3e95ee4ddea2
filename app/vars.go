package app

import (
	"strings"

	"tparse/util/conf"
)

var (
	// shared command options
	taskContextFile string
	corpusName      string
	argPrefix       string
	batchSize       int
	featureSize     int
	numEpochs       int
	outFile         string
	dumpFeatures    bool
)

// declaredFeatureSize resolves the feature-group count a command declares:
// an explicit flag value, or the group count of the configured feature spec.
func declaredFeatureSize(ctx *conf.Context) int {
	if featureSize > 0 {
		return featureSize
	}
	spec := ctx.Get(argPrefix+"_features", "")
	if spec == "" {
		return 0
	}
	return strings.Count(spec, ";") + 1
}
