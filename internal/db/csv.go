package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"quiz-live/internal/game"
)

// QuestionRecord is one row of a question bank CSV:
//
//	game_code,question,duration_seconds,correct,answer_1,answer_2,...
//
// correct is the 1-based position of the right answer.
type QuestionRecord struct {
	Code     string
	Text     string
	Duration int
	Answers  []AnswerRecord
}

type AnswerRecord struct {
	Text    string
	Correct bool
}

// ReadQuestions parses a question bank file.
func ReadQuestions(path string) ([]QuestionRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseQuestions(file)
}

func ParseQuestions(r io.Reader) ([]QuestionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var records []QuestionRecord
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("line %d: expected code, question, duration, correct and at least two answers", i+1)
		}
		code, err := game.NormalizeCode(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		text := strings.TrimSpace(row[1])
		if text == "" {
			continue
		}
		duration, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil || duration <= 0 || duration > game.MaxQuestionSeconds {
			return nil, fmt.Errorf("line %d: invalid duration %q", i+1, row[2])
		}
		correct, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid correct answer %q", i+1, row[3])
		}
		record := QuestionRecord{Code: code, Text: text, Duration: duration}
		for j, cell := range row[4:] {
			answer := strings.TrimSpace(cell)
			if answer == "" {
				continue
			}
			record.Answers = append(record.Answers, AnswerRecord{Text: answer, Correct: j+1 == correct})
		}
		if !hasCorrect(record.Answers) {
			return nil, fmt.Errorf("line %d: correct answer %d is out of range", i+1, correct)
		}
		records = append(records, record)
	}
	return records, nil
}

func hasCorrect(answers []AnswerRecord) bool {
	for _, answer := range answers {
		if answer.Correct {
			return true
		}
	}
	return false
}

// GroupByCode splits records per game code, keeping file order.
func GroupByCode(records []QuestionRecord) map[string][]QuestionRecord {
	quizzes := make(map[string][]QuestionRecord)
	for _, record := range records {
		quizzes[record.Code] = append(quizzes[record.Code], record)
	}
	return quizzes
}

// ToGameQuestions converts records for the in-memory question source.
// Answer ids are 1-based positions.
func ToGameQuestions(records []QuestionRecord) []game.Question {
	questions := make([]game.Question, 0, len(records))
	for _, record := range records {
		question := game.Question{Text: record.Text, Duration: record.Duration}
		for j, answer := range record.Answers {
			question.Answers = append(question.Answers, game.Answer{
				ID:      strconv.Itoa(j + 1),
				Text:    answer.Text,
				Correct: answer.Correct,
			})
		}
		questions = append(questions, question)
	}
	return questions
}

// SeedMemory loads a question bank file into an in-memory source.
func SeedMemory(source *game.MemoryQuestions, path string) (int, error) {
	records, err := ReadQuestions(path)
	if err != nil {
		return 0, err
	}
	quizzes := GroupByCode(records)
	for code, list := range quizzes {
		source.Put(code, ToGameQuestions(list))
	}
	return len(quizzes), nil
}

// LoadQuestionBank reads a CSV and replaces the stored quiz of every game
// code it mentions.
func LoadQuestionBank(ctx context.Context, conn *gorm.DB, path string) (int, error) {
	if conn == nil {
		return 0, nil
	}
	records, err := ReadQuestions(path)
	if err != nil {
		return 0, err
	}
	quizzes := GroupByCode(records)
	codes := make([]string, 0, len(quizzes))
	for code := range quizzes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	loaded := 0
	for _, code := range codes {
		if err := SaveQuiz(ctx, conn, code, "", quizzes[code]); err != nil {
			return loaded, fmt.Errorf("save quiz %s: %w", code, err)
		}
		loaded++
	}
	return loaded, nil
}
