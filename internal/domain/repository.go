package domain

type RepositoryName string

const (
	UserRepoName        RepositoryName = "user"
	PackageRepoName     RepositoryName = "package"
	InvestmentRepoName  RepositoryName = "investment"
	UserDetailsRepoName RepositoryName = "user_details"
	PayoutRepoName      RepositoryName = "payout"
)
