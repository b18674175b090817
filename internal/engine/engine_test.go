package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"finprofile-chat/internal/classifier"
	"finprofile-chat/internal/questions"
	"finprofile-chat/internal/storage"
)

// stubClassifier записывает стенограммы всех вызовов Classify
type stubClassifier struct {
	calls   [][]storage.AnsweredQuestion
	results []*classifier.Result
	errs    []error
}

func (c *stubClassifier) Classify(_ context.Context, transcript []storage.AnsweredQuestion) (*classifier.Result, error) {
	i := len(c.calls)
	snapshot := make([]storage.AnsweredQuestion, len(transcript))
	copy(snapshot, transcript)
	c.calls = append(c.calls, snapshot)

	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.results) {
		return c.results[i], nil
	}
	return okResult(), nil
}

func okResult() *classifier.Result {
	return &classifier.Result{
		Profile:         classifier.ProfileBalanced,
		Explanation:     "הסבר",
		Recommendations: []string{"לחסוך יותר", "לפזר השקעות"},
	}
}

func mustQuestionnaire(t *testing.T, list []questions.Question) *questions.Questionnaire {
	t.Helper()
	qn, err := questions.NewQuestionnaire(list)
	require.NoError(t, err)
	return qn
}

func flatQuestions(n int) []questions.Question {
	list := make([]questions.Question, n)
	for i := range list {
		list[i] = questions.Question{
			ID:   fmt.Sprintf("%d", i+1),
			Text: fmt.Sprintf("שאלה %d", i+1),
			Type: questions.TypeText,
		}
	}
	list[n-1].IsFinal = true
	return list
}

func kinds(msgs []Message) []MessageKind {
	out := make([]MessageKind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func TestStartEmitsWelcomeAndFirstQuestion(t *testing.T) {
	qn := mustQuestionnaire(t, flatQuestions(3))
	sess := NewSession("s1", qn, &stubClassifier{}, []string{"שלום", "ברוכים הבאים"})

	msgs, err := sess.Start()
	require.NoError(t, err)
	require.Equal(t, PhaseCollecting, sess.Phase())
	require.Equal(t, []MessageKind{KindInfo, KindInfo, KindQuestion}, kinds(msgs))
	require.Equal(t, "שלום", msgs[0].Content)
	require.Equal(t, "שאלה 1", msgs[2].Content)

	current, total := sess.Progress()
	require.Equal(t, 1, current)
	require.Equal(t, 3, total)
}

func TestStartWithoutQuestionsFails(t *testing.T) {
	sess := NewSession("s1", nil, &stubClassifier{}, nil)

	msgs, err := sess.Start()
	require.ErrorIs(t, err, ErrNoQuestions)
	require.Equal(t, PhaseFailed, sess.Phase())
	require.Len(t, msgs, 1)
	require.Equal(t, KindError, msgs[0].Kind)
	require.Equal(t, MsgLoadError, msgs[0].Content)
}

func TestStartTwice(t *testing.T) {
	qn := mustQuestionnaire(t, flatQuestions(2))
	sess := NewSession("s1", qn, &stubClassifier{}, nil)

	_, err := sess.Start()
	require.NoError(t, err)

	_, err = sess.Start()
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSequentialFlowClassifiesOnce(t *testing.T) {
	cl := &stubClassifier{}
	qn := mustQuestionnaire(t, flatQuestions(3))
	sess := NewSession("s1", qn, cl, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	ctx := context.Background()

	msgs, err := sess.SubmitAnswer(ctx, "תשובה 1")
	require.NoError(t, err)
	require.Equal(t, []MessageKind{KindQuestion}, kinds(msgs))
	require.Equal(t, "שאלה 2", msgs[0].Content)

	_, err = sess.SubmitAnswer(ctx, "תשובה 2")
	require.NoError(t, err)

	msgs, err = sess.SubmitAnswer(ctx, "תשובה 3")
	require.NoError(t, err)
	require.Equal(t, PhaseClassified, sess.Phase())

	// Ровно одна классификация, с полной стенограммой
	require.Len(t, cl.calls, 1)
	require.Len(t, cl.calls[0], 3)
	require.Equal(t, "1", cl.calls[0][0].QuestionID)
	require.Equal(t, "תשובה 1", cl.calls[0][0].Answer)

	require.Equal(t, KindProfile, msgs[0].Kind)
	require.Equal(t, MsgProfilePrefix+classifier.ProfileBalanced, msgs[0].Content)
	require.NotNil(t, msgs[0].Result)
	require.Equal(t, MsgAskEmail, msgs[len(msgs)-1].Content)
}

func TestNumericAnswerKeepsDigitsOnly(t *testing.T) {
	list := flatQuestions(2)
	list[0].Type = questions.TypeSum
	qn := mustQuestionnaire(t, list)
	sess := NewSession("s1", qn, &stubClassifier{}, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	_, err = sess.SubmitAnswer(context.Background(), "12,500 ₪")
	require.NoError(t, err)

	transcript := sess.Transcript()
	require.Len(t, transcript, 1)
	require.Equal(t, "12500", transcript[0].Answer)
}

func TestBranchTargetSkipsQuestions(t *testing.T) {
	list := []questions.Question{
		{ID: "1", Text: "שאלה 1", Type: questions.TypeMultiple,
			Options:      []string{"כן", "לא"},
			NextByOption: []string{"", "3"}},
		{ID: "2", Text: "שאלה 2", Type: questions.TypeText},
		{ID: "3", Text: "שאלה 3", Type: questions.TypeText, IsFinal: true},
	}
	qn := mustQuestionnaire(t, list)
	cl := &stubClassifier{}
	sess := NewSession("s1", qn, cl, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	// Вариант с переходом — вопрос 2 пропускается
	msgs, err := sess.SubmitAnswer(context.Background(), "לא")
	require.NoError(t, err)
	require.Equal(t, "שאלה 3", msgs[0].Content)

	_, err = sess.SubmitAnswer(context.Background(), "תשובה")
	require.NoError(t, err)
	require.Equal(t, PhaseClassified, sess.Phase())
	require.Len(t, cl.calls, 1)
	require.Len(t, cl.calls[0], 2)
	require.Equal(t, "3", cl.calls[0][1].QuestionID)
}

func TestBranchWithoutTargetFallsThrough(t *testing.T) {
	list := []questions.Question{
		{ID: "1", Text: "שאלה 1", Type: questions.TypeMultiple,
			Options:      []string{"כן", "לא"},
			NextByOption: []string{"", "3"}},
		{ID: "2", Text: "שאלה 2", Type: questions.TypeText},
		{ID: "3", Text: "שאלה 3", Type: questions.TypeText, IsFinal: true},
	}
	qn := mustQuestionnaire(t, list)
	sess := NewSession("s1", qn, &stubClassifier{}, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	// Вариант без перехода идет к следующему вопросу по порядку
	msgs, err := sess.SubmitAnswer(context.Background(), "כן")
	require.NoError(t, err)
	require.Equal(t, "שאלה 2", msgs[0].Content)
}

func TestFreeTextOnMultipleFallsThrough(t *testing.T) {
	list := []questions.Question{
		{ID: "1", Text: "שאלה 1", Type: questions.TypeMultiple,
			Options:      []string{"כן", "לא"},
			NextByOption: []string{"", "3"}},
		{ID: "2", Text: "שאלה 2", Type: questions.TypeText},
		{ID: "3", Text: "שאלה 3", Type: questions.TypeText, IsFinal: true},
	}
	qn := mustQuestionnaire(t, list)
	sess := NewSession("s1", qn, &stubClassifier{}, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	msgs, err := sess.SubmitAnswer(context.Background(), "אולי")
	require.NoError(t, err)
	require.Equal(t, "שאלה 2", msgs[0].Content)
	require.Equal(t, "אולי", sess.Transcript()[0].Answer)
}

func sectionedQuestions() []questions.Question {
	return []questions.Question{
		{ID: "1", Text: "שאלה 1", Type: questions.TypeText, Section: "basic"},
		{ID: "2", Text: "שאלה 2", Type: questions.TypeText, Section: "basic"},
		{ID: "3", Text: "שאלה 3", Type: questions.TypeText, Section: "deep"},
		{ID: "4", Text: "שאלה 4", Type: questions.TypeText, Section: "deep", IsFinal: true},
	}
}

func TestSectionBoundaryClassifiesFirstPhase(t *testing.T) {
	cl := &stubClassifier{results: []*classifier.Result{
		{Profile: classifier.ProfilePlanner, Explanation: "הסבר", Recommendations: []string{"המלצה"}},
		okResult(),
	}}
	qn := mustQuestionnaire(t, sectionedQuestions())
	sess := NewSession("s1", qn, cl, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = sess.SubmitAnswer(ctx, "תשובה 1")
	require.NoError(t, err)

	// Последний ответ первой секции: классификация её подмножества,
	// сообщение о профиле и первый вопрос второй секции
	msgs, err := sess.SubmitAnswer(ctx, "תשובה 2")
	require.NoError(t, err)
	require.Equal(t, PhaseCollecting, sess.Phase())
	require.Equal(t, classifier.ProfilePlanner, sess.SectionProfile())

	require.Len(t, cl.calls, 1)
	require.Len(t, cl.calls[0], 2)
	require.Equal(t, "1", cl.calls[0][0].QuestionID)
	require.Equal(t, "2", cl.calls[0][1].QuestionID)

	require.Equal(t, []MessageKind{KindInfo, KindQuestion}, kinds(msgs))
	require.Equal(t, MsgProfilePrefix+classifier.ProfilePlanner, msgs[0].Content)
	require.Equal(t, "שאלה 3", msgs[1].Content)

	// Финал: вторая классификация уже по полной стенограмме
	_, err = sess.SubmitAnswer(ctx, "תשובה 3")
	require.NoError(t, err)
	_, err = sess.SubmitAnswer(ctx, "תשובה 4")
	require.NoError(t, err)
	require.Equal(t, PhaseClassified, sess.Phase())
	require.Len(t, cl.calls, 2)
	require.Len(t, cl.calls[1], 4)
}

func TestSectionClassificationFailureIsTerminal(t *testing.T) {
	cl := &stubClassifier{errs: []error{errors.New("api down")}}
	qn := mustQuestionnaire(t, sectionedQuestions())
	sess := NewSession("s1", qn, cl, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = sess.SubmitAnswer(ctx, "תשובה 1")
	require.NoError(t, err)

	msgs, err := sess.SubmitAnswer(ctx, "תשובה 2")
	require.Error(t, err)
	require.Equal(t, PhaseFailed, sess.Phase())
	require.Len(t, msgs, 1)
	require.Equal(t, KindError, msgs[0].Kind)
	require.Equal(t, MsgClassifyError, msgs[0].Content)

	// Терминальное состояние: новые ответы не принимаются
	_, err = sess.SubmitAnswer(ctx, "עוד תשובה")
	require.ErrorIs(t, err, ErrNotCollecting)
}

func TestFinalClassificationFailureIsTerminal(t *testing.T) {
	cl := &stubClassifier{errs: []error{errors.New("bad response")}}
	qn := mustQuestionnaire(t, flatQuestions(1))
	sess := NewSession("s1", qn, cl, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	msgs, err := sess.SubmitAnswer(context.Background(), "תשובה")
	require.Error(t, err)
	require.Equal(t, PhaseFailed, sess.Phase())
	require.Nil(t, sess.Result())
	require.Equal(t, MsgClassifyError, msgs[0].Content)
	require.Len(t, cl.calls, 1)
}

func TestStructuredRecommendationInProfileMessages(t *testing.T) {
	cl := &stubClassifier{results: []*classifier.Result{{
		Profile:     classifier.ProfileCalculated,
		Explanation: "הסבר מפורט",
		Immediate: &classifier.Recommendation{
			Title:       "קרן חירום",
			Description: "לבנות כרית ביטחון",
		},
	}}}
	qn := mustQuestionnaire(t, flatQuestions(1))
	sess := NewSession("s1", qn, cl, nil)
	_, err := sess.Start()
	require.NoError(t, err)

	msgs, err := sess.SubmitAnswer(context.Background(), "תשובה")
	require.NoError(t, err)
	require.Equal(t, []MessageKind{KindProfile, KindInfo, KindInfo, KindInfo}, kinds(msgs))
	require.Contains(t, msgs[2].Content, "קרן חירום")
	require.Contains(t, msgs[2].Content, "לבנות כרית ביטחון")
}

type fixedCompletions struct {
	response string
}

func (f fixedCompletions) CompleteJSON(_ context.Context, _ string) (string, error) {
	return f.response, nil
}

func TestUnknownProfileLabelNeverReachesUser(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	svc, err := classifier.New(classifier.ModeCompletions, fixedCompletions{
		response: `{"profile": "הפזרן", "description": "הסבר", "recommendations": ["המלצה"]}`,
	}, nil, nil, log)
	require.NoError(t, err)

	qn := mustQuestionnaire(t, flatQuestions(1))
	sess := NewSession("s1", qn, svc, nil)
	_, err = sess.Start()
	require.NoError(t, err)

	msgs, err := sess.SubmitAnswer(context.Background(), "תשובה")
	require.Error(t, err)
	require.Equal(t, PhaseFailed, sess.Phase())

	// Метка вне фиксированного набора не показывается — только фиксированный текст
	require.Len(t, msgs, 1)
	require.Equal(t, MsgClassifyError, msgs[0].Content)
	require.NotContains(t, msgs[0].Content, "הפזרן")
}

func TestAnswerBeforeStart(t *testing.T) {
	qn := mustQuestionnaire(t, flatQuestions(1))
	sess := NewSession("s1", qn, &stubClassifier{}, nil)

	_, err := sess.SubmitAnswer(context.Background(), "תשובה")
	require.ErrorIs(t, err, ErrNotCollecting)
}

func TestResetRestoresFreshState(t *testing.T) {
	cl := &stubClassifier{}
	qn := mustQuestionnaire(t, flatQuestions(2))
	sess := NewSession("s1", qn, cl, []string{"שלום"})

	first, err := sess.Start()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = sess.SubmitAnswer(ctx, "תשובה 1")
	require.NoError(t, err)
	_, err = sess.SubmitAnswer(ctx, "תשובה 2")
	require.NoError(t, err)
	require.Equal(t, PhaseClassified, sess.Phase())

	sess.Reset()
	require.Equal(t, PhaseIdle, sess.Phase())
	require.Empty(t, sess.Transcript())
	require.Nil(t, sess.Result())
	require.Empty(t, sess.SectionProfile())

	again, err := sess.Start()
	require.NoError(t, err)
	require.Equal(t, first, again)

	current, total := sess.Progress()
	require.Equal(t, 1, current)
	require.Equal(t, 2, total)
}

func TestCurrentQuestion(t *testing.T) {
	qn := mustQuestionnaire(t, flatQuestions(2))
	sess := NewSession("s1", qn, &stubClassifier{}, nil)

	_, ok := sess.CurrentQuestion()
	require.False(t, ok)

	_, err := sess.Start()
	require.NoError(t, err)

	q, ok := sess.CurrentQuestion()
	require.True(t, ok)
	require.Equal(t, "1", q.ID)
}

func TestFilterDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12,500 ₪", "12500"},
		{"בערך 300 אלף", "300"},
		{"1000000", "1000000"},
		{"אין לי מושג", ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FilterDigits(c.in), "input %q", c.in)
	}
}
