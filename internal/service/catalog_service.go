package service

import (
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/internal/util"
	"appcc_edu_backend/pkg/logger"
	"context"
	"math/rand"
	"strings"

	"go.uber.org/zap"
)

// CatalogService 课程目录的编辑与读取
type CatalogService struct {
	CourseRepo     *repository.CourseRepository
	QuizRepo       *repository.QuizRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Policy         *AccessPolicy
	Outlines       *OutlineCache
	Assessment     *AssessmentService
}

func NewCatalogService(
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	policy *AccessPolicy,
	outlines *OutlineCache,
	assessment *AssessmentService,
) *CatalogService {
	return &CatalogService{
		CourseRepo:     courseRepo,
		QuizRepo:       quizRepo,
		EnrollmentRepo: enrollmentRepo,
		Policy:         policy,
		Outlines:       outlines,
		Assessment:     assessment,
	}
}

type CourseInput struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Type          model.CourseType `json:"type"`
	Level         string           `json:"level"`
	Duration      int              `json:"duration"`
	Published     *bool            `json:"published"`
	RequiredScore *int             `json:"requiredScore"`
}

func (in CourseInput) validate() error {
	verr := &util.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "required")
	}
	if !in.Type.Valid() {
		verr.Add("type", "must be one of food_safety, haccp, allergens, hygiene, management, customer_service")
	}
	if in.Duration < 0 {
		verr.Add("duration", "must not be negative")
	}
	if in.RequiredScore != nil && (*in.RequiredScore < 0 || *in.RequiredScore > 100) {
		verr.Add("requiredScore", "must be within [0,100]")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// apply 写入课程字段，未提供的 published 与 requiredScore 保留原值
func (in CourseInput) apply(course *model.Course) {
	course.Title = strings.TrimSpace(in.Title)
	course.Description = in.Description
	course.Type = in.Type
	course.Level = in.Level
	course.Duration = in.Duration
	if in.Published != nil {
		course.Published = *in.Published
	}
	if in.RequiredScore != nil {
		course.RequiredScore = *in.RequiredScore
	}
}

func (s *CatalogService) CreateCourse(ctx context.Context, actor Actor, in CourseInput) (*model.Course, error) {
	if err := s.Policy.CanAuthor(actor, actor.CompanyID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	course := &model.Course{
		CompanyID:     actor.CompanyID,
		RequiredScore: s.Assessment.DefaultPassingScore(),
	}
	in.apply(course)
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	logger.Log.Info("Course created", zap.Uint("course_id", course.ID), zap.Uint("company_id", course.CompanyID))
	return course, nil
}

// authorCourse 读取课程并校验编辑权限
func (s *CatalogService) authorCourse(actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanAuthor(actor, course.CompanyID); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CatalogService) UpdateCourse(ctx context.Context, actor Actor, courseID uint, in CourseInput) (*model.Course, error) {
	course, err := s.authorCourse(actor, courseID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.apply(course)
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CatalogService) DeleteCourse(ctx context.Context, actor Actor, courseID uint) error {
	if _, err := s.authorCourse(actor, courseID); err != nil {
		return err
	}
	if err := s.CourseRepo.Delete(courseID); err != nil {
		return err
	}
	s.Outlines.Invalidate(ctx, courseID)
	return nil
}

// ListCourses 管理员看到本公司全部课程，学员只看到已发布课程
func (s *CatalogService) ListCourses(ctx context.Context, actor Actor) ([]model.Course, error) {
	if actor.UserID == 0 {
		return nil, util.ErrUnauthenticated
	}
	return s.CourseRepo.ListByCompany(actor.CompanyID, !actor.IsAdmin())
}

func (s *CatalogService) GetCourse(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanViewListing(actor, course); err != nil {
		return nil, err
	}
	return course, nil
}

// readableCourse 读取课程并校验内容访问权限（管理员或已选课学员）
func (s *CatalogService) readableCourse(actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	enrolled := false
	if !actor.IsAdmin() {
		enrolled, err = s.EnrollmentRepo.ExistsForUserAndCourse(actor.UserID, courseID)
		if err != nil {
			return nil, err
		}
	}
	if err := s.Policy.CanReadContent(actor, course, enrolled); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CatalogService) ListLessons(ctx context.Context, actor Actor, courseID uint) ([]model.Lesson, error) {
	if _, err := s.readableCourse(actor, courseID); err != nil {
		return nil, err
	}
	return s.CourseRepo.ListLessons(courseID)
}

func (s *CatalogService) ListQuizzes(ctx context.Context, actor Actor, courseID uint) ([]model.Quiz, error) {
	if _, err := s.readableCourse(actor, courseID); err != nil {
		return nil, err
	}
	return s.QuizRepo.ListByCourse(courseID)
}

type LessonInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	VideoURL string `json:"videoUrl"`
	Order    int    `json:"order"`
	Duration int    `json:"duration"`
}

func (in LessonInput) validate() error {
	verr := &util.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "required")
	}
	if in.Order < 0 {
		verr.Add("order", "must not be negative")
	}
	if in.Duration < 0 {
		verr.Add("duration", "must not be negative")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (in LessonInput) apply(lesson *model.Lesson) {
	lesson.Title = strings.TrimSpace(in.Title)
	lesson.Content = in.Content
	lesson.VideoURL = in.VideoURL
	lesson.Order = in.Order
	lesson.Duration = in.Duration
}

func (s *CatalogService) CreateLesson(ctx context.Context, actor Actor, courseID uint, in LessonInput) (*model.Lesson, error) {
	if _, err := s.authorCourse(actor, courseID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	lesson := &model.Lesson{CourseID: courseID}
	in.apply(lesson)
	if err := s.CourseRepo.CreateLesson(lesson); err != nil {
		if repository.IsDuplicate(err) {
			return nil, util.ErrLessonOrderTaken
		}
		return nil, err
	}
	s.Outlines.Invalidate(ctx, courseID)
	return lesson, nil
}

func (s *CatalogService) UpdateLesson(ctx context.Context, actor Actor, lessonID uint, in LessonInput) (*model.Lesson, error) {
	lesson, err := s.CourseRepo.FindLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorCourse(actor, lesson.CourseID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.apply(lesson)
	if err := s.CourseRepo.UpdateLesson(lesson); err != nil {
		if repository.IsDuplicate(err) {
			return nil, util.ErrLessonOrderTaken
		}
		return nil, err
	}
	s.Outlines.Invalidate(ctx, lesson.CourseID)
	return lesson, nil
}

func (s *CatalogService) DeleteLesson(ctx context.Context, actor Actor, lessonID uint) error {
	lesson, err := s.CourseRepo.FindLessonByID(lessonID)
	if err != nil {
		return err
	}
	if _, err := s.authorCourse(actor, lesson.CourseID); err != nil {
		return err
	}
	if err := s.CourseRepo.DeleteLesson(lessonID); err != nil {
		return err
	}
	s.Outlines.Invalidate(ctx, lesson.CourseID)
	return nil
}

type QuizInput struct {
	Title              string `json:"title"`
	LessonID           *uint  `json:"lessonId"`
	PassingScore       *int   `json:"passingScore"`
	TimeLimit          int    `json:"timeLimit"`
	RandomizeQuestions bool   `json:"randomizeQuestions"`
}

func (s *CatalogService) validateQuiz(courseID uint, in QuizInput) error {
	verr := &util.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "required")
	}
	if in.PassingScore != nil && (*in.PassingScore < 0 || *in.PassingScore > 100) {
		verr.Add("passingScore", "must be within [0,100]")
	}
	if in.TimeLimit < 0 {
		verr.Add("timeLimit", "must not be negative")
	}
	if verr.HasErrors() {
		return verr
	}
	if in.LessonID != nil {
		lesson, err := s.CourseRepo.FindLessonByID(*in.LessonID)
		if err != nil {
			return err
		}
		if lesson.CourseID != courseID {
			return util.ErrLessonMismatch
		}
	}
	return nil
}

func (in QuizInput) apply(quiz *model.Quiz) {
	quiz.Title = strings.TrimSpace(in.Title)
	quiz.LessonID = in.LessonID
	quiz.PassingScore = in.PassingScore
	quiz.TimeLimit = in.TimeLimit
	quiz.RandomizeQuestions = in.RandomizeQuestions
}

func (s *CatalogService) CreateQuiz(ctx context.Context, actor Actor, courseID uint, in QuizInput) (*model.Quiz, error) {
	if _, err := s.authorCourse(actor, courseID); err != nil {
		return nil, err
	}
	if err := s.validateQuiz(courseID, in); err != nil {
		return nil, err
	}
	quiz := &model.Quiz{CourseID: courseID}
	in.apply(quiz)
	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	s.Outlines.Invalidate(ctx, courseID)
	return quiz, nil
}

// authorQuiz 读取测验并校验编辑权限
func (s *CatalogService) authorQuiz(actor Actor, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorCourse(actor, quiz.CourseID); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CatalogService) UpdateQuiz(ctx context.Context, actor Actor, quizID uint, in QuizInput) (*model.Quiz, error) {
	quiz, err := s.authorQuiz(actor, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.validateQuiz(quiz.CourseID, in); err != nil {
		return nil, err
	}
	in.apply(quiz)
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CatalogService) DeleteQuiz(ctx context.Context, actor Actor, quizID uint) error {
	quiz, err := s.authorQuiz(actor, quizID)
	if err != nil {
		return err
	}
	if err := s.QuizRepo.Delete(quizID); err != nil {
		return err
	}
	s.Outlines.Invalidate(ctx, quiz.CourseID)
	return nil
}

type OptionInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionInput struct {
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Points  *int               `json:"points"`
	Order   int                `json:"order"`
	Options []OptionInput      `json:"options"`
}

func (in QuestionInput) validate() error {
	verr := &util.ValidationError{}
	if strings.TrimSpace(in.Text) == "" {
		verr.Add("text", "required")
	}
	if !in.Type.Valid() {
		verr.Add("type", "must be one of multiple_choice, true_false, matching")
	}
	if in.Points != nil && *in.Points < 0 {
		verr.Add("points", "must not be negative")
	}
	if in.Type == model.QuestionTrueFalse && len(in.Options) > 0 && len(in.Options) != 2 {
		verr.Add("options", "true_false questions take exactly two options")
	}
	for _, o := range in.Options {
		if strings.TrimSpace(o.Text) == "" {
			verr.Add("options", "option text is required")
			break
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (s *CatalogService) CreateQuestion(ctx context.Context, actor Actor, quizID uint, in QuestionInput) (*model.Question, error) {
	if _, err := s.authorQuiz(actor, quizID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	question := &model.Question{
		QuizID: quizID,
		Text:   strings.TrimSpace(in.Text),
		Type:   in.Type,
		Points: 1,
		Order:  in.Order,
	}
	if in.Points != nil {
		question.Points = *in.Points
	}
	for _, o := range in.Options {
		question.Options = append(question.Options, model.Option{
			Text:      strings.TrimSpace(o.Text),
			IsCorrect: o.IsCorrect,
		})
	}
	if err := s.QuizRepo.CreateQuestion(question); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, actor Actor, questionID uint) error {
	question, err := s.QuizRepo.FindQuestionByID(questionID)
	if err != nil {
		return err
	}
	if _, err := s.authorQuiz(actor, question.QuizID); err != nil {
		return err
	}
	return s.QuizRepo.DeleteQuestion(questionID)
}

func (s *CatalogService) AddOption(ctx context.Context, actor Actor, questionID uint, in OptionInput) (*model.Option, error) {
	question, err := s.QuizRepo.FindQuestionByID(questionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorQuiz(actor, question.QuizID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, util.NewValidationError("text", "required")
	}
	option := &model.Option{
		QuestionID: questionID,
		Text:       strings.TrimSpace(in.Text),
		IsCorrect:  in.IsCorrect,
	}
	if err := s.QuizRepo.CreateOption(option); err != nil {
		return nil, err
	}
	return option, nil
}

// QuestionView 题目视图
type QuestionView struct {
	ID      uint               `json:"id"`
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Points  int                `json:"points"`
	Order   int                `json:"order"`
	Options []OptionView       `json:"options"`
}

// QuizView 测验视图，学员视图不含标准答案
type QuizView struct {
	ID                 uint           `json:"id"`
	CourseID           uint           `json:"courseId"`
	LessonID           *uint          `json:"lessonId"`
	Title              string         `json:"title"`
	PassingScore       int            `json:"passingScore"`
	TimeLimit          int            `json:"timeLimit"`
	RandomizeQuestions bool           `json:"randomizeQuestions"`
	Questions          []QuestionView `json:"questions"`
}

// GetQuiz 管理员获得完整测验；已选课学员获得隐藏答案的视图，
// randomizeQuestions 开启时题目顺序每次随机
func (s *CatalogService) GetQuiz(ctx context.Context, actor Actor, quizID uint) (*QuizView, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(quizID)
	if err != nil {
		return nil, err
	}
	course, err := s.readableCourse(actor, quiz.CourseID)
	if err != nil {
		return nil, err
	}

	reveal := actor.IsAdmin()
	view := &QuizView{
		ID:                 quiz.ID,
		CourseID:           quiz.CourseID,
		LessonID:           quiz.LessonID,
		Title:              quiz.Title,
		PassingScore:       s.Assessment.PassingScore(quiz, course),
		TimeLimit:          quiz.TimeLimit,
		RandomizeQuestions: quiz.RandomizeQuestions,
		Questions:          make([]QuestionView, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		view.Questions = append(view.Questions, QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Points:  q.Points,
			Order:   q.Order,
			Options: optionViews(q.Options, reveal),
		})
	}
	if quiz.RandomizeQuestions && !reveal {
		rand.Shuffle(len(view.Questions), func(i, j int) {
			view.Questions[i], view.Questions[j] = view.Questions[j], view.Questions[i]
		})
	}
	return view, nil
}
