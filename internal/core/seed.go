package core

// LocalUID is the identity used for the unauthenticated local profile.
const LocalUID = "local"

// DefaultMonthlyBudget is assigned to freshly created profiles.
var DefaultMonthlyBudget = MoneyFromInt(20000)

// AccountColors is the palette new accounts rotate through.
var AccountColors = []string{
	"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#6366F1", "#EC4899", "#8B5CF6",
}

// NextAccountColor picks the palette entry for the n-th account.
func NextAccountColor(n int) string {
	if n < 0 {
		n = 0
	}
	return AccountColors[n%len(AccountColors)]
}

func DefaultCategories() []Category {
	return []Category{
		{ID: "cat1", Name: "Salary", Direction: Income, Icon: IconBriefcase},
		{ID: "cat2", Name: "Investment Returns", Direction: Income, Icon: IconTrendingUp},
		{ID: "cat3", Name: "Food", Direction: Expense, Icon: IconUtensils},
		{ID: "cat4", Name: "Transport", Direction: Expense, Icon: IconCar},
		{ID: "cat5", Name: "Entertainment", Direction: Expense, Icon: IconGamepad},
		{ID: "cat6", Name: "Rent", Direction: Expense, Icon: IconHome},
		{ID: "cat7", Name: "Shopping", Direction: Expense, Icon: IconShoppingBag},
		{ID: "cat8", Name: "Medical", Direction: Expense, Icon: IconHeartPulse},
	}
}

func DefaultAccounts() []Account {
	return []Account{
		{ID: "acc1", Name: "Cathay United", Balance: MoneyFromInt(50000), Color: "#00A859"},
		{ID: "acc2", Name: "Taishin Richart", Balance: MoneyFromInt(25000), Color: "#E60012"},
	}
}

// DefaultProfile is the profile created on first sign-in.
func DefaultProfile(uid, email string) UserProfile {
	return UserProfile{
		UID:           uid,
		Email:         email,
		DisplayName:   "New User",
		MonthlyBudget: DefaultMonthlyBudget,
		Budgets:       []Budget{},
	}
}

// DefaultState is the seed state used for a fresh local store and after a clear.
func DefaultState() AppState {
	p := DefaultProfile(LocalUID, "")
	return AppState{
		Accounts:     DefaultAccounts(),
		Categories:   DefaultCategories(),
		Transactions: []Transaction{},
		Profile:      &p,
		Mode:         ModeTest,
	}
}
