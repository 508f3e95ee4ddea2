package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"tparse/nlp/parser"
	"tparse/nlp/parser/transition"
	"tparse/util"
	"tparse/util/conf"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/gosuri/uiprogress"
)

// RunOracle streams gold training records: for every parser state the
// batch reaches, one line with the gold action and, optionally, the
// serialized feature groups for that state.
func RunOracle(cmd *commander.Command, args []string) error {
	ctx, err := conf.ReadFile(taskContextFile)
	if err != nil {
		log.Fatalln("Failed reading task context from", taskContextFile, err)
	}
	store := util.NewSharedStore()
	reader, err := parser.NewGoldReader(ctx, store, corpusName, argPrefix, batchSize, declaredFeatureSize(ctx))
	if err != nil {
		return err
	}
	defer reader.Close()

	out := os.Stdout
	if outFile != "" {
		out, err = os.Create(outFile)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	uiprogress.Start()
	bar := uiprogress.AddBar(numEpochs).AppendCompleted()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("epoch %d/%d", b.Current(), numEpochs)
	})

	records := 0
	for {
		step, err := reader.Step()
		if err != nil {
			return err
		}
		if step.Epoch >= numEpochs {
			break
		}
		bar.Set(step.Epoch)
		for row, action := range step.GoldActions {
			if dumpFeatures {
				fmt.Fprintf(writer, "%d\t%s\n", action, formatFeatureRow(step.Features, row))
			} else {
				fmt.Fprintf(writer, "%d\n", action)
			}
			records++
		}
	}
	uiprogress.Stop()
	log.Println("Wrote", records, "gold records over", numEpochs, "epochs")
	return nil
}

func formatFeatureRow(features [][][]transition.SparseFeature, row int) string {
	groups := make([]string, len(features))
	for g := range features {
		serialized := make([]string, len(features[g][row]))
		for k := range features[g][row] {
			serialized[k] = features[g][row][k].Serialize()
		}
		groups[g] = strings.Join(serialized, " ")
	}
	return strings.Join(groups, "\t")
}

func OracleCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       RunOracle,
		UsageLine: "oracle <file options> [arguments]",
		Short:     "generates gold transition sequences from a corpus",
		Long: `
generates gold transition sequences from a corpus

	$ ./tparse oracle -c <task context> [-corpus training-corpus] [-prefix parser] [-b 32] [-e 1] [-o <out file>] [options]

`,
		Flag: *flag.NewFlagSet("oracle", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&taskContextFile, "c", "context.yaml", "Task Context File")
	cmd.Flag.StringVar(&corpusName, "corpus", "training-corpus", "Corpus input name in the task context")
	cmd.Flag.StringVar(&argPrefix, "prefix", "parser", "Parameter prefix for feature/scoring settings")
	cmd.Flag.IntVar(&batchSize, "b", 32, "Batch Size")
	cmd.Flag.IntVar(&featureSize, "fsize", 0, "Declared feature group count (0 = from feature spec)")
	cmd.Flag.IntVar(&numEpochs, "e", 1, "Number of epochs to generate")
	cmd.Flag.StringVar(&outFile, "o", "", "Output file (default stdout)")
	cmd.Flag.BoolVar(&dumpFeatures, "dump", false, "Also dump serialized feature groups")
	return cmd
}
