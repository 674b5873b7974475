package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trezcool/coursemate/core/dataset"
	"github.com/trezcool/coursemate/core/recommend"
)

// train builds the model from ratingsPath, saves its artifact to out and prints a sample recommendation.
func (cli *commandLine) train(ratingsPath, out string) error {
	conf := recommend.ConfigFrom(cli.conf)
	conf.RatingsPath = ratingsPath
	conf.ArtifactPath = out

	svc := recommend.NewService(conf, nil, nil, nil)
	m, err := svc.Train(context.Background())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "trained on %d ratings: %d users, %d courses\n", m.RatingCount, len(m.UserIDs), m.CourseCount)
	if out != "" {
		_, _ = fmt.Fprintf(cli.out, "artifact saved to %s\n", out)
	}

	if len(m.UserIDs) > 0 {
		sample := m.UserIDs[0]
		ids, err := m.Recommend(sample, svc.Config().DefaultTopN, svc.Config().SimilarUsers)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "recommendations for user %s: [%s]\n", sample, strings.Join(ids, ", "))
	}
	return nil
}

func (cli *commandLine) preprocess(dir string) error {
	res, err := dataset.PreprocessDir(dir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d rows (%d courses, %d ratings, %d users)\n",
		dataset.CleanedFile, res.Merged.Len(), res.Courses.Len(), res.Ratings.Len(), res.Users.Len())

	// the pivoted matrix the recommender trains on, for inspection
	ratings, err := recommend.LoadRatingsFile(filepath.Join(dir, dataset.PrepRatingsFile))
	if err != nil {
		return err
	}
	matrix := recommend.BuildMatrix(ratings)
	path := filepath.Join(dir, dataset.UserCourseMatrix)
	if err = dataset.WriteFileAtomic(path, func(f *os.File) error { return matrix.WriteCSV(f) }); err != nil {
		return err
	}
	users, courses := matrix.Dims()
	_, _ = fmt.Fprintf(cli.out, "%s: %d users x %d courses\n", dataset.UserCourseMatrix, users, courses)
	return nil
}
