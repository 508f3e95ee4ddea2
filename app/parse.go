package app

import (
	"log"

	"tparse/nlp/format/conll"
	"tparse/nlp/parser"
	nlp "tparse/nlp/types"
	"tparse/util"
	"tparse/util/conf"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
)

var parsedOutFile string

// RunParse drives the decoded reader over one corpus pass. Scores come
// from the reader's gold-scorer, so the run doubles as an end-to-end check
// of the decoded pipeline: the output should reproduce the gold parses and
// report full accuracy.
func RunParse(cmd *commander.Command, args []string) error {
	ctx, err := conf.ReadFile(taskContextFile)
	if err != nil {
		log.Fatalln("Failed reading task context from", taskContextFile, err)
	}
	store := util.NewSharedStore()
	reader, err := parser.NewDecodedReader(ctx, store, corpusName, argPrefix, batchSize, declaredFeatureSize(ctx))
	if err != nil {
		return err
	}
	defer reader.Close()

	var (
		scores               [][]float32
		documents            []*nlp.Sentence
		totalTokens, correct int
	)
	log.Print("Parsing started")
	for {
		step, err := reader.Step(scores)
		if err != nil {
			return err
		}
		documents = append(documents, step.Documents...)
		totalTokens += step.NumTokens
		correct += step.NumCorrect
		if step.Epoch >= 1 {
			break
		}
		scores = reader.GoldScores()
	}

	if parsedOutFile != "" {
		if err := conll.WriteFile(parsedOutFile, documents); err != nil {
			return err
		}
		log.Println("Wrote", len(documents), "in conll format to", parsedOutFile)
	}
	if totalTokens > 0 {
		log.Printf("Token accuracy: %d/%d (%.2f%%)", correct, totalTokens,
			100*float64(correct)/float64(totalTokens))
	}
	return nil
}

func ParseCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       RunParse,
		UsageLine: "parse <file options> [arguments]",
		Short:     "runs decoded parsing over a corpus",
		Long: `
runs decoded parsing over a corpus

	$ ./tparse parse -c <task context> [-corpus training-corpus] [-prefix parser] [-b 32] [-oc <out conll>] [options]

`,
		Flag: *flag.NewFlagSet("parse", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&taskContextFile, "c", "context.yaml", "Task Context File")
	cmd.Flag.StringVar(&corpusName, "corpus", "training-corpus", "Corpus input name in the task context")
	cmd.Flag.StringVar(&argPrefix, "prefix", "parser", "Parameter prefix for feature/scoring settings")
	cmd.Flag.IntVar(&batchSize, "b", 32, "Batch Size")
	cmd.Flag.IntVar(&featureSize, "fsize", 0, "Declared feature group count (0 = from feature spec)")
	cmd.Flag.StringVar(&parsedOutFile, "oc", "", "Output Conll File")
	return cmd
}
