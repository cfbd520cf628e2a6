package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"classifyd/config"
	"classifyd/logger"
	"classifyd/ml"
)

func main() {
	task := flag.String("task", "classification", "training task: classification or generic")
	dataPath := flag.String("data", "./data/training.csv", "training CSV (features..., label)")
	modelPath := flag.String("model_path", "./model/classifier.json", "model output path")
	maxDepth := flag.Int("max_depth", 10, "max tree depth")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	log, err := logger.New(config.LogConfig{Level: *logLevel})
	if err != nil {
		fail(err)
	}
	defer log.Sync()

	if err := run(log, *task, *dataPath, *modelPath, *maxDepth, *testRatio); err != nil {
		fail(err)
	}
}

func run(log *zap.Logger, task, dataPath, modelPath string, maxDepth int, testRatio float64) error {
	modelType, err := modelTypeFor(task)
	if err != nil {
		return err
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("failed to open training data: %w", err)
	}
	defer file.Close()

	features, labels, err := ml.ReadTrainingCSV(file)
	if err != nil {
		return fmt.Errorf("failed to read training data: %w", err)
	}

	trainX, trainY, testX, testY := ml.SplitDataset(features, labels, testRatio)

	model, err := ml.NewTrainer(modelType, maxDepth)
	if err != nil {
		return err
	}
	if err := model.Train(trainX, trainY); err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}

	accuracy, err := ml.Accuracy(model, testX, testY)
	if err != nil {
		return fmt.Errorf("failed to evaluate model: %w", err)
	}
	log.Info("model trained",
		zap.String("model_type", modelType),
		zap.Int("train_rows", len(trainX)),
		zap.Int("test_rows", len(testX)),
		zap.Float64("accuracy", accuracy),
	)

	if err := model.Save(modelPath); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	fmt.Printf("model saved to %s\n", modelPath)
	return nil
}

func modelTypeFor(task string) (string, error) {
	switch task {
	case "classification":
		return ml.ModelTypeDecisionTree, nil
	case "generic":
		return ml.ModelTypeNearestCentroid, nil
	default:
		return "", fmt.Errorf("unknown task %q", task)
	}
}

// fail writes a plain message to stderr; the server returns it as the retrain error detail.
func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
