package services

// Canonical interest categories. Question categories and user interests
// both draw from this set.
var interestCategories = []string{
	"daily",     // 일상·하루
	"memories",  // 추억·과거
	"family",    // 가족·관계
	"gratitude", // 감사·행복
	"hobbies",   // 취향·취미
	"food",      // 음식·요리
	"learning",  // 배움·호기심
	"seasons",   // 계절·날씨·장소
	"future",    // 미래·꿈·계획
	"comfort",   // 위로·응원·자기돌봄
}

// IsValidInterest reports whether id is a canonical interest category.
func IsValidInterest(id string) bool {
	for _, c := range interestCategories {
		if c == id {
			return true
		}
	}
	return false
}

type defaultQuestion struct {
	content    string
	category   string
	difficulty string
}

// The curated default set inserted by pool recovery. Content doubles as
// the dedup key, so re-running recovery never grows the pool past it.
var defaultQuestions = []defaultQuestion{
	{"오늘 하루 중 가장 감사했던 순간은 언제였나요?", "daily", "easy"},
	{"오늘 하루를 한 단어로 표현한다면 무엇인가요?", "daily", "easy"},
	{"오늘 만난 사람 중에 기억에 남는 사람이 있나요?", "daily", "easy"},
	{"가족과 함께 해보고 싶은 새로운 활동이 있다면 무엇인가요?", "family", "easy"},
	{"가족 중에서 가장 닮고 싶은 사람의 장점은 무엇인가요?", "family", "easy"},
	{"우리 가족만의 특별한 전통이나 규칙이 있나요?", "family", "easy"},
	{"어릴 때 가장 기억에 남는 가족 여행지는 어디인가요?", "memories", "easy"},
	{"가장 행복했던 어린 시절 기억을 하나 들려주세요.", "memories", "easy"},
	{"최근에 가장 행복했던 일은 무엇인가요?", "gratitude", "easy"},
	{"내 곁에 있어서 고마운 사람은 누구인가요?", "gratitude", "easy"},
	{"요즘 새로 시작한 취미나 관심사가 있나요?", "hobbies", "easy"},
	{"스트레스를 풀 때 가장 좋아하는 방법은 무엇인가요?", "hobbies", "easy"},
	{"최근에 먹어본 음식 중 가장 맛있었던 것은 무엇인가요?", "food", "easy"},
	{"어릴 때부터 지금까지 변하지 않는 좋아하는 음식이 있나요?", "food", "easy"},
	{"요즘 가장 궁금한 것이나 배워보고 싶은 것이 있나요?", "learning", "easy"},
	{"올해 안에 꼭 이루고 싶은 작은 목표가 있나요?", "future", "easy"},
	{"힘들 때 나를 위로해주는 것은 무엇인가요?", "comfort", "easy"},
	{"지금 계절에 가장 좋아하는 것은 무엇인가요?", "seasons", "easy"},
}
