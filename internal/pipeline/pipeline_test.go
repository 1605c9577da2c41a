package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"yakusub/internal/avcode"
	"yakusub/internal/logging"
	"yakusub/internal/manifest"
	"yakusub/internal/scanner"
	"yakusub/internal/scraper"
	"yakusub/internal/translate"
)

const japaneseSRT = `1
00:00:01,000 --> 00:00:03,000
こんにちは

2
00:00:05,000 --> 00:00:07,000
さようなら
`

const chineseSRT = `1
00:00:01,000 --> 00:00:03,000
你好

2
00:00:05,000 --> 00:00:07,000
再见
`

type fakeAudio struct {
	calls int
	fail  bool
}

func (f *fakeAudio) ExtractAudio(_ context.Context, _, dest string) error {
	f.calls++
	if f.fail {
		return errors.New("ffmpeg failed")
	}
	return os.WriteFile(dest, []byte("pcm"), 0o644)
}

type fakeVocals struct {
	calls int
}

func (f *fakeVocals) Denoise(_ context.Context, _, dest string) error {
	f.calls++
	return os.WriteFile(dest, []byte("vocals"), 0o644)
}

type fakeRecognizer struct {
	calls    int
	failures int
}

func (f *fakeRecognizer) Run(_ context.Context, _, dest string) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("quality gates rejected every attempt")
	}
	return os.WriteFile(dest, []byte(japaneseSRT), 0o644)
}

type fakeTranslator struct {
	correctCalls       int
	translateCalls     int
	titleCalls         int
	synopsisCalls      int
	metadataCalls      int
	failCorrect        bool
	lastCorrectTerms   []translate.TermEntry
	lastTranslateTerms []translate.TermEntry
}

func (f *fakeTranslator) CorrectSubtitle(_ context.Context, srt string, terms []translate.TermEntry) translate.ProcessResult {
	f.correctCalls++
	f.lastCorrectTerms = terms
	if f.failCorrect {
		return translate.ProcessResult{ErrorKind: translate.ErrConnection, ErrorDetail: "provider down"}
	}
	return translate.ProcessResult{
		Success: true,
		Content: srt,
		Terms:   []translate.TermEntry{{Japanese: "先輩", RecommendedChinese: "前辈"}},
	}
}

func (f *fakeTranslator) TranslateSubtitle(_ context.Context, _ string, terms []translate.TermEntry) translate.ProcessResult {
	f.translateCalls++
	f.lastTranslateTerms = terms
	return translate.ProcessResult{Success: true, Content: chineseSRT}
}

func (f *fakeTranslator) TranslateTitle(context.Context, string, []string, []string) translate.ProcessResult {
	f.titleCalls++
	return translate.ProcessResult{Success: true, Content: "中文标题"}
}

func (f *fakeTranslator) TranslateSynopsis(context.Context, string, []string, []string) translate.ProcessResult {
	f.synopsisCalls++
	return translate.ProcessResult{Success: true, Content: "中文简介"}
}

func (f *fakeTranslator) TranslateMetadata(_ context.Context, _, text string) translate.ProcessResult {
	f.metadataCalls++
	return translate.ProcessResult{Success: true, Content: "译-" + text}
}

type fakeSite struct {
	calls int
	err   error
}

func (f *fakeSite) Name() string    { return "fake" }
func (f *fakeSite) Available() bool { return true }

func (f *fakeSite) ValidateCode(context.Context, avcode.Code) (bool, error) {
	return true, nil
}

func (f *fakeSite) FetchMetadata(context.Context, avcode.Code) (*scraper.Metadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	director := manifest.BilingualText{Original: "監督"}
	studio := manifest.BilingualText{Original: "スタジオ"}
	return &scraper.Metadata{
		Title:       manifest.BilingualText{Original: "タイトル"},
		Synopsis:    manifest.BilingualText{Original: "あらすじ"},
		ReleaseDate: "2024-01-15",
		Director:    &director,
		Studio:      &studio,
		Categories:  []manifest.BilingualText{{Original: "ドラマ"}},
		Actors: []manifest.Actor{
			{CurrentName: manifest.BilingualText{Original: "花子"}, Aliases: []manifest.BilingualText{{Original: "花子"}}, Female: true},
		},
	}, nil
}

type testRig struct {
	engine     *Engine
	store      *manifest.Store
	root       string
	audio      *fakeAudio
	vocals     *fakeVocals
	recognizer *fakeRecognizer
	translator *fakeTranslator
	site       *fakeSite
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()
	noise := filepath.Join(dir, "noise.txt")
	prefix := filepath.Join(dir, "prefix.txt")
	for _, path := range []string{noise, prefix} {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := manifest.Open(dataDir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rig := &testRig{
		store:      store,
		root:       filepath.Join(dir, "library"),
		audio:      &fakeAudio{},
		vocals:     &fakeVocals{},
		recognizer: &fakeRecognizer{},
		translator: &fakeTranslator{},
		site:       &fakeSite{},
	}
	if err := os.MkdirAll(rig.root, 0o755); err != nil {
		t.Fatal(err)
	}
	rig.engine = &Engine{
		outputDir:  filepath.Join(dir, "out"),
		store:      store,
		scanner:    scanner.New(avcode.New(noise, prefix, nil, nil), 1, nil),
		sites:      []scraper.Site{rig.site},
		audio:      rig.audio,
		vocals:     rig.vocals,
		recognizer: rig.recognizer,
		translator: rig.translator,
		logger:     logging.NewNop(),
	}
	return rig
}

func (rig *testRig) addVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(rig.root, name)
	if err := os.WriteFile(path, []byte("payload "+name), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (rig *testRig) loadMovie(t *testing.T, label, number string) *manifest.Movie {
	t.Helper()
	session, err := rig.store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Rollback()
	movie, err := session.FindMovieByCode(context.Background(), label, number)
	if err != nil {
		t.Fatalf("FindMovieByCode() error: %v", err)
	}
	if movie == nil {
		t.Fatalf("movie %s-%s not found", label, number)
	}
	return movie
}

func stageStatus(t *testing.T, video *manifest.Video, stage string) manifest.StageStatus {
	t.Helper()
	row, ok := video.StageRowFor(stage)
	if !ok {
		t.Fatalf("no row for stage %s", stage)
	}
	return row.Status
}

func TestRunProcessesVideoEndToEnd(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	movie := rig.loadMovie(t, "ABC", "123")
	if len(movie.Videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(movie.Videos))
	}
	video := movie.Videos[0]

	for _, stage := range manifest.VideoStageOrder {
		if got := stageStatus(t, video, stage); got != manifest.StatusSuccess {
			t.Fatalf("stage %s = %s, want success", stage, got)
		}
	}
	if got := movie.Stages[0].Status; got != manifest.StatusSuccess {
		t.Fatalf("scrape = %s, want success", got)
	}

	terminal, _ := video.StageRowFor(manifest.StageBilingual)
	data, err := os.ReadFile(terminal.ByProduct)
	if err != nil {
		t.Fatalf("terminal artifact missing: %v", err)
	}
	ass := string(data)
	if !strings.Contains(ass, "CHS_Main") || !strings.Contains(ass, "你好") {
		t.Fatalf("ass missing expected content:\n%s", ass)
	}
	if !strings.Contains(ass, "中文标题") {
		t.Fatal("intro should use the translated title")
	}

	if movie.Title.Translated != "中文标题" {
		t.Fatalf("title translated = %q", movie.Title.Translated)
	}
	// director, studio, one category, one actor
	if rig.translator.metadataCalls != 4 {
		t.Fatalf("metadata calls = %d, want 4", rig.translator.metadataCalls)
	}
	if len(movie.Terms) != 1 || movie.Terms[0].Origin != "先輩" {
		t.Fatalf("terms = %+v", movie.Terms)
	}
}

func TestRerunDoesNoWorkWhenComplete(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	if rig.audio.calls != 1 || rig.recognizer.calls != 1 || rig.translator.correctCalls != 1 {
		t.Fatalf("rerun repeated work: audio=%d recognizer=%d correct=%d",
			rig.audio.calls, rig.recognizer.calls, rig.translator.correctCalls)
	}
	if rig.site.calls != 1 {
		t.Fatalf("scrape ran %d times, want 1", rig.site.calls)
	}
}

func TestDeletedIntermediateToleratedWhenTerminalExists(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	movie := rig.loadMovie(t, "ABC", "123")
	row, _ := movie.Videos[0].StageRowFor(manifest.StageExtract)
	if err := os.Remove(row.ByProduct); err != nil {
		t.Fatal(err)
	}

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("rerun error: %v", err)
	}
	if rig.audio.calls != 1 {
		t.Fatalf("extract reran despite valid terminal artifact: calls=%d", rig.audio.calls)
	}
	movie = rig.loadMovie(t, "ABC", "123")
	if got := stageStatus(t, movie.Videos[0], manifest.StageExtract); got != manifest.StatusSuccess {
		t.Fatalf("extract = %s, want success kept", got)
	}
}

func TestDeletedTerminalArtifactResetsFromBreak(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	movie := rig.loadMovie(t, "ABC", "123")
	terminal, _ := movie.Videos[0].StageRowFor(manifest.StageBilingual)
	if err := os.Remove(terminal.ByProduct); err != nil {
		t.Fatal(err)
	}

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("rerun error: %v", err)
	}

	// Only the bilingual stage had a missing artifact; everything before it
	// keeps its result.
	if rig.translator.translateCalls != 1 || rig.audio.calls != 1 {
		t.Fatalf("earlier stages reran: translate=%d audio=%d",
			rig.translator.translateCalls, rig.audio.calls)
	}
	movie = rig.loadMovie(t, "ABC", "123")
	terminal, _ = movie.Videos[0].StageRowFor(manifest.StageBilingual)
	if terminal.Status != manifest.StatusSuccess || !fileExists(terminal.ByProduct) {
		t.Fatalf("terminal stage not rebuilt: %+v", terminal)
	}
}

func TestResetCascadesFromMissingByProduct(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	movie := rig.loadMovie(t, "ABC", "123")
	video := movie.Videos[0]
	terminal, _ := video.StageRowFor(manifest.StageBilingual)
	transcribed, _ := video.StageRowFor(manifest.StageTranscribe)
	corrected, _ := video.StageRowFor(manifest.StageCorrect)
	for _, path := range []string{terminal.ByProduct, transcribed.ByProduct} {
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
	}

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("rerun error: %v", err)
	}

	// Everything from the transcribe break point reran; extract and denoise
	// kept their results.
	if rig.recognizer.calls != 2 || rig.translator.correctCalls != 2 || rig.translator.translateCalls != 2 {
		t.Fatalf("cascade reran wrong stages: transcribe=%d correct=%d translate=%d",
			rig.recognizer.calls, rig.translator.correctCalls, rig.translator.translateCalls)
	}
	if rig.audio.calls != 1 || rig.vocals.calls != 1 {
		t.Fatalf("stages before the break reran: audio=%d vocals=%d",
			rig.audio.calls, rig.vocals.calls)
	}
	if !fileExists(corrected.ByProduct) {
		t.Fatal("corrected subtitle not rebuilt after cascade reset")
	}
	movie = rig.loadMovie(t, "ABC", "123")
	for _, stage := range manifest.VideoStageOrder {
		if got := stageStatus(t, movie.Videos[0], stage); got != manifest.StatusSuccess {
			t.Fatalf("stage %s = %s after cascade, want success", stage, got)
		}
	}
}

func TestFailedStageAbortsVideoAndResumesNextRun(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")
	rig.recognizer.failures = 1

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	movie := rig.loadMovie(t, "ABC", "123")
	video := movie.Videos[0]
	if got := stageStatus(t, video, manifest.StageTranscribe); got != manifest.StatusFailed {
		t.Fatalf("transcribe = %s, want failed", got)
	}
	if got := stageStatus(t, video, manifest.StageCorrect); got != manifest.StatusPending {
		t.Fatalf("correct = %s, want pending", got)
	}
	if rig.translator.correctCalls != 0 {
		t.Fatal("correct stage must not run after a failed transcription")
	}

	// Next run resets the failed stage to pending and picks up from there.
	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("rerun error: %v", err)
	}
	movie = rig.loadMovie(t, "ABC", "123")
	for _, stage := range manifest.VideoStageOrder {
		if got := stageStatus(t, movie.Videos[0], stage); got != manifest.StatusSuccess {
			t.Fatalf("stage %s = %s after resume, want success", stage, got)
		}
	}
	if rig.recognizer.calls != 2 {
		t.Fatalf("transcribe calls = %d, want 2", rig.recognizer.calls)
	}
	if rig.audio.calls != 1 {
		t.Fatalf("extract calls = %d, want 1 (stages before the break keep their result)", rig.audio.calls)
	}
}

func TestScrapeFailureDoesNotBlockVideoStages(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")
	rig.site.err = scraper.ErrNotFound

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	movie := rig.loadMovie(t, "ABC", "123")
	if got := movie.Stages[0].Status; got != manifest.StatusFailed {
		t.Fatalf("scrape = %s, want failed", got)
	}
	if got := stageStatus(t, movie.Videos[0], manifest.StageBilingual); got != manifest.StatusSuccess {
		t.Fatalf("bilingual = %s, want success despite missing metadata", got)
	}
	if movie.Title.Original != "" {
		t.Fatalf("title = %q, want empty", movie.Title.Original)
	}
}

func TestAnonymousMovieSkipsScrape(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "家庭録画.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rig.site.calls != 0 {
		t.Fatal("anonymous movie must not hit the scraper")
	}

	session, err := rig.store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Rollback()
	ids, err := session.MovieIDs(context.Background())
	if err != nil || len(ids) != 1 {
		t.Fatalf("ids = %v, %v", ids, err)
	}
	movie, err := session.LoadMovie(context.Background(), ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if !movie.Anonymous() {
		t.Fatalf("movie %s not anonymous", movie.Code())
	}
	if got := movie.Stages[0].Status; got != manifest.StatusSkipped {
		t.Fatalf("scrape = %s, want skipped", got)
	}
	if got := stageStatus(t, movie.Videos[0], manifest.StageBilingual); got != manifest.StatusSuccess {
		t.Fatalf("bilingual = %s, want success", got)
	}
}

func TestCorrectionTermsReachTranslation(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	found := false
	for _, term := range rig.translator.lastTranslateTerms {
		if term.Japanese == "先輩" && term.RecommendedChinese == "前辈" {
			found = true
		}
	}
	if !found {
		t.Fatalf("correction terms missing from translate call: %+v", rig.translator.lastTranslateTerms)
	}
}

func TestRunLogsCarryContextFields(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")

	var buf bytes.Buffer
	rig.engine.logger = slog.New(slog.NewTextHandler(&buf, nil))

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"movie_code=ABC-123",
		"video=ABC-123.mp4",
		"stage=bilingual",
		"event_type=stage_complete",
		"correlation_id=",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestGlossarySeedsLaterMovies(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")
	rig.addVideo(t, "XYZ-001.mp4")

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// The first movie promoted 先輩 into the glossary; the second movie's
	// correction call must be seeded with it.
	found := false
	for _, term := range rig.translator.lastCorrectTerms {
		if term.Japanese == "先輩" && term.RecommendedChinese == "前辈" {
			found = true
		}
	}
	if !found {
		t.Fatalf("glossary term missing from later correction: %+v", rig.translator.lastCorrectTerms)
	}

	session, err := rig.store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Rollback()
	glossary, err := session.GlossaryTerms(context.Background())
	if err != nil {
		t.Fatalf("GlossaryTerms() error: %v", err)
	}
	if len(glossary) != 1 || glossary[0].Origin != "先輩" {
		t.Fatalf("glossary = %+v, want single 先輩 entry", glossary)
	}
}

func TestCorrectFailureMarksStageFailed(t *testing.T) {
	rig := newTestRig(t)
	rig.addVideo(t, "ABC-123.mp4")
	rig.translator.failCorrect = true

	if err := rig.engine.Run(context.Background(), rig.root); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	movie := rig.loadMovie(t, "ABC", "123")
	video := movie.Videos[0]
	if got := stageStatus(t, video, manifest.StageCorrect); got != manifest.StatusFailed {
		t.Fatalf("correct = %s, want failed", got)
	}
	if got := stageStatus(t, video, manifest.StageTranscribe); got != manifest.StatusSuccess {
		t.Fatalf("transcribe = %s, want success kept", got)
	}
	if rig.translator.translateCalls != 0 {
		t.Fatal("translate must not run after a failed correction")
	}
}
