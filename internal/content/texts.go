package content

import "reflect"

// Texts is the user facing copy. Values are HTML and may contain fmt verbs where
// noted. Every field left empty in the content file keeps its default.
type Texts struct {
	Greeting        string `yaml:"greeting"`
	QuestionHeader  string `yaml:"question_header"` // %d question number
	ChooseAnswer    string `yaml:"choose_answer"`
	Correct         string `yaml:"correct"`
	Incorrect       string `yaml:"incorrect"`
	CorrectAnswerIs string `yaml:"correct_answer_is"` // %s answer texts
	RestartHint     string `yaml:"restart_hint"`
	AlreadyAnswered string `yaml:"already_answered"`
	StaleQuestion   string `yaml:"stale_question"`
	FinishQuizFirst string `yaml:"finish_quiz_first"`
	QuizCompleted   string `yaml:"quiz_completed"` // %d correct, %d total
	ShowResults     string `yaml:"show_results"`
	NotFinished     string `yaml:"not_finished"`

	GenerationAccepted string `yaml:"generation_accepted"`
	GenerationFailed   string `yaml:"generation_failed"`
	UnknownError       string `yaml:"unknown_error"`
	GenericError       string `yaml:"generic_error"`

	ResultTitle      string `yaml:"result_title"`   // %s badge title
	ResultDetails    string `yaml:"result_details"` // %d score, %s texter link
	TexterLinkText   string `yaml:"texter_link_text"`
	TexterButton     string `yaml:"texter_button"`
	SubscribePrompt  string `yaml:"subscribe_prompt"`
	SubscribeButton  string `yaml:"subscribe_button"`
	SubscribedButton string `yaml:"subscribed_button"`
	SubscribedThanks string `yaml:"subscribed_thanks"`
	SubscribedBonus  string `yaml:"subscribed_bonus"`
	HolstButton      string `yaml:"holst_button"`
	NotSubscribed    string `yaml:"not_subscribed"`
	NotYourButton    string `yaml:"not_your_button"`
}

// DefaultTexts returns the built-in Russian copy.
func DefaultTexts() Texts {
	return Texts{
		Greeting:        "Привет! Это квиз-игра с нашим ботом. Проверь, насколько хорошо ты разбираешься в нейросетях 🤖",
		QuestionHeader:  "ВОПРОС #%d",
		ChooseAnswer:    "Выберите вариант ответа:",
		Correct:         "✅ Верно!",
		Incorrect:       "❌ Неверно.",
		CorrectAnswerIs: "Правильный ответ: %s",
		RestartHint:     "Чтобы пройти квиз заново, отправь /quiz.",
		AlreadyAnswered: "Вы уже ответили на этот вопрос.",
		StaleQuestion:   "Этот вопрос уже неактуален.",
		FinishQuizFirst: "Сначала завершите викторину перед тем, как сделать запрос. 🤓",
		QuizCompleted: "<b>Правильные ответы: %d из %d</b>\n\n" +
			"🤩 Кажется, вы уже прониклись нейросетями. Самое время попробовать свои навыки в деле.\n\n" +
			"Сгенерируйте изображение собаки, которая катается на скейтборде по магазину.\n\n" +
			"🖥 Просто отправьте запрос сообщением, и через минуту бот пришлёт результат. Посмотрим, что у вас получится.",
		ShowResults: "📊 Показать результаты",
		NotFinished: "Сначала пройдите квиз до конца.",

		GenerationAccepted: "Ваш запрос на генерацию изображения принят и находится в обработке. Мы отправим вам фото, как только оно будет готово.",
		GenerationFailed:   "Извините, произошла ошибка при обработке вашего запроса на генерацию изображения.",
		UnknownError:       "Извините, произошла неизвестная ошибка.",
		GenericError:       "Что-то пошло не так. Пожалуйста, попробуйте ещё раз.",

		ResultTitle: "<b>Твоё звание: %s</b>",
		ResultDetails: "Правильные ответы: %d\n\n<b>😳 Неожиданные результаты, верно?</b>\n\n" +
			"Теперь ты точно убедился, что нейросети - важная часть современного мира и сейчас самое время начать их изучать.\n\n" +
			"🎁 А чтобы старт был легче, держи бонусные токены для %s.\n\n" +
			"С ними ты сможешь создать курсовую, рекламный пост, стихотворение, картинку и много чего еще.",
		TexterLinkText:   "НейроТекстера",
		TexterButton:     "👉 Скорее переходи 👈",
		SubscribePrompt:  "📢 Подпишись на наш канал о нейросетях и получи ещё один бонус. После подписки нажми кнопку ниже.",
		SubscribeButton:  "Подписаться на канал",
		SubscribedButton: "✅ Я уже подписался",
		SubscribedThanks: "✅ Спасибо за подписку! Теперь ты полноправный участник нашего сообщества.",
		SubscribedBonus: "🤫 Делимся с тобой секретным сервисом «НейроХолст», который способен генерировать картинки на уровне DALL-E и Midjourney.\n\n" +
			"Тебе не понадобятся VPN, зарубежная карта и даже знание английского языка.\n\n" +
			"👇 Пробуй прямо сейчас 👇\n\n💰Это БЕСПЛАТНО💰",
		HolstButton:   "Попробовать и перейти",
		NotSubscribed: "❗️ Кажется, ты ещё не подписался на наш канал. Пожалуйста, подпишись, чтобы получить дополнительный бонус.",
		NotYourButton: "Эта кнопка предназначена другому пользователю.",
	}
}

// withDefaults fills every empty string field from def.
func (t Texts) withDefaults(def Texts) Texts {
	out := reflect.ValueOf(&t).Elem()
	src := reflect.ValueOf(def)
	for i := 0; i < out.NumField(); i++ {
		f := out.Field(i)
		if f.Kind() == reflect.String && f.String() == "" {
			f.SetString(src.Field(i).String())
		}
	}
	return t
}
