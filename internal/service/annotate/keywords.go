package annotate

// keyword maps a lower-case trigger to the emoji it contributes.
type keyword struct {
	match string
	emoji []string
}

// keywordTable is scanned in order; earlier rows win when the result is truncated.
var keywordTable = []keyword{
	// Greetings & social
	{"hello", []string{"👋", "🙋"}},
	{"hi", []string{"👋", "🙋"}},
	{"thanks", []string{"🙏", "😊"}},
	{"thank", []string{"🙏", "😊"}},
	{"bye", []string{"👋", "👋🏻"}},
	{"goodbye", []string{"👋", "👋🏻"}},

	// Positive
	{"happy", []string{"😊", "😄", "😃"}},
	{"great", []string{"👍", "😊"}},
	{"good", []string{"👍", "✅"}},
	{"excellent", []string{"⭐️", "🌟"}},
	{"wonderful", []string{"✨", "😊"}},
	{"amazing", []string{"🤩", "😍"}},
	{"love", []string{"❤️", "🥰"}},
	{"beautiful", []string{"💐", "🌟"}},
	{"nice", []string{"😊", "👍"}},
	{"yes", []string{"✅", "👍"}},

	// Negative
	{"sad", []string{"😢", "😔"}},
	{"bad", []string{"😞", "😟"}},
	{"terrible", []string{"😨", "😰"}},
	{"awful", []string{"😞", "😕"}},
	{"hate", []string{"😠", "🤬"}},
	{"no", []string{"❌", "😐"}},

	// Complex emotions
	{"excited", []string{"🤩", "🥳"}},
	{"surprised", []string{"😲", "😮"}},
	{"worried", []string{"😟", "😰"}},
	{"angry", []string{"😠", "🤬"}},

	// Activities
	{"work", []string{"💼", "⌚️"}},
	{"study", []string{"📚", "📖"}},
	{"play", []string{"🎮", "🎯"}},
	{"exercise", []string{"🏋️", "🏃"}},
	{"run", []string{"🏃", "🏃‍♀️"}},
	{"walk", []string{"🚶", "🚶‍♀️"}},

	// Food & drink
	{"eat", []string{"🍽️", "🍴"}},
	{"food", []string{"🍔", "🍕"}},
	{"breakfast", []string{"🍳", "🥞"}},
	{"lunch", []string{"🥙", "🍲"}},
	{"dinner", []string{"🍽️", "🍖"}},
	{"coffee", []string{"☕️", "☕"}},
	{"drink", []string{"🥤", "🍹"}},

	// Weather
	{"sunny", []string{"☀️", "🌞"}},
	{"rain", []string{"🌧️", "☔️"}},
	{"snow", []string{"❄️", "⛄️"}},
	{"cloud", []string{"☁️", "🌥️"}},
	{"hot", []string{"🔥", "🌡️"}},
	{"cold", []string{"🥶", "❄️"}},

	// Technology
	{"phone", []string{"📱", "📲"}},
	{"computer", []string{"💻", "🖥️"}},
	{"app", []string{"📱", "⚙️"}},
	{"internet", []string{"🌐", "📡"}},
	{"wifi", []string{"📶", "📡"}},

	// Time of day
	{"morning", []string{"🌅", "🌄"}},
	{"afternoon", []string{"🌆", "🏙️"}},
	{"evening", []string{"🌆", "🌃"}},
	{"night", []string{"🌙", "🌃"}},

	// Questions
	{"how", []string{"❓", "🤔"}},
	{"what", []string{"❓", "🤔"}},
	{"where", []string{"❓", "🗺️"}},
	{"why", []string{"❓", "🤔"}},

	// People & places
	{"friend", []string{"👫", "🤝"}},
	{"family", []string{"👨‍👩‍👧‍👦", "👪"}},
	{"home", []string{"🏠", "🏡"}},
	{"help", []string{"🆘", "🙋‍♂️"}},
}
