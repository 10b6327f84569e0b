package config

// DefaultFeedCatalog returns the built-in tiered RSS source list. Tier 1 is
// flagship lab blogs; tier 6 is high-volume cloud and preprint feeds.
func DefaultFeedCatalog() []FeedSource {
	return []FeedSource{
		// Tier 1: flagship AI product and research blogs
		{Name: "Google DeepMind Blog", URL: "https://deepmind.google/blog/feed.xml", Tier: 1, CategoryBias: "ml_engineering"},
		{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss.xml", Tier: 1, CategoryBias: "ml_engineering"},
		{Name: "Anthropic Blog", URL: "https://www.anthropic.com/news/feed.xml", Tier: 1, CategoryBias: "ml_engineering"},
		{Name: "Meta AI Blog", URL: "https://ai.meta.com/blog/feed/", Tier: 1, CategoryBias: "ml_engineering"},
		{Name: "Microsoft AI Blog", URL: "https://blogs.microsoft.com/ai/feed/", Tier: 1, CategoryBias: "product_strategy"},
		{Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml", Tier: 1, CategoryBias: "ml_engineering"},
		{Name: "AI21 Labs Blog", URL: "https://www.ai21.com/blog/rss", Tier: 1, CategoryBias: "ml_engineering"},

		// Tier 2: practitioner blogs
		{Name: "The Batch (Andrew Ng)", URL: "https://www.deeplearning.ai/the-batch/feed/", Tier: 2, CategoryBias: "ml_engineering"},
		{Name: "Towards Data Science", URL: "https://towardsdatascience.com/feed", Tier: 2, CategoryBias: "ml_engineering"},
		{Name: "Chip Huyen Blog", URL: "https://huyenchip.com/feed.xml", Tier: 2, CategoryBias: "mlops"},
		{Name: "Jay Alammar Blog", URL: "https://jalammar.github.io/feed.xml", Tier: 2, CategoryBias: "ml_engineering"},
		{Name: "Eugene Yan Blog", URL: "https://eugeneyan.com/rss/", Tier: 2, CategoryBias: "mlops"},
		{Name: "Sebastian Ruder Blog", URL: "https://www.ruder.io/rss/", Tier: 2, CategoryBias: "ml_engineering"},
		{Name: "Lilian Weng Blog", URL: "https://lilianweng.github.io/lil-log/feed.xml", Tier: 2, CategoryBias: "ml_engineering"},

		// Tier 3: MLOps vendors and communities
		{Name: "MLOps Community Blog", URL: "https://mlops.community/feed/", Tier: 3, CategoryBias: "mlops"},
		{Name: "Neptune.ai Blog", URL: "https://neptune.ai/blog/rss", Tier: 3, CategoryBias: "mlops"},
		{Name: "Weights & Biases Blog", URL: "https://wandb.ai/fully-connected/feed", Tier: 3, CategoryBias: "mlops"},
		{Name: "Evidently AI Blog", URL: "https://www.evidentlyai.com/blog/rss", Tier: 3, CategoryBias: "mlops"},
		{Name: "Verta Blog", URL: "https://blog.verta.ai/rss", Tier: 3, CategoryBias: "mlops"},
		{Name: "Arize AI Blog", URL: "https://arize.com/blog/rss/", Tier: 3, CategoryBias: "mlops"},
		{Name: "Tecton Blog", URL: "https://www.tecton.ai/blog/rss", Tier: 3, CategoryBias: "infrastructure"},

		// Tier 4: product strategy
		{Name: "Lenny's Newsletter", URL: "https://www.lennysnewsletter.com/feed", Tier: 4, CategoryBias: "product_strategy"},
		{Name: "Product Hunt Blog", URL: "https://blog.producthunt.com/rss", Tier: 4, CategoryBias: "product_strategy"},
		{Name: "First Round Review", URL: "https://review.firstround.com/feed.xml", Tier: 4, CategoryBias: "product_strategy"},
		{Name: "Reforge Blog", URL: "https://www.reforge.com/blog/rss", Tier: 4, CategoryBias: "product_strategy"},
		{Name: "The Pragmatic Engineer", URL: "https://newsletter.pragmaticengineer.com/feed", Tier: 4, CategoryBias: "product_strategy"},
		{Name: "Stratechery (Ben Thompson)", URL: "https://stratechery.com/feed/", Tier: 4, CategoryBias: "product_strategy"},
		{Name: "Mind the Product", URL: "https://www.mindtheproduct.com/feed/", Tier: 4, CategoryBias: "product_strategy"},

		// Tier 5: AI ethics and safety
		{Name: "Partnership on AI Blog", URL: "https://partnershiponai.org/feed/", Tier: 5, CategoryBias: "ai_ethics"},
		{Name: "AI Now Institute", URL: "https://ainowinstitute.org/feed", Tier: 5, CategoryBias: "ai_ethics"},
		{Name: "Future of Life Institute", URL: "https://futureoflife.org/feed/", Tier: 5, CategoryBias: "ai_ethics"},
		{Name: "Alignment Forum", URL: "https://www.alignmentforum.org/feed.xml", Tier: 5, CategoryBias: "ai_ethics"},
		{Name: "AI Safety Newsletter", URL: "https://humancompatible.ai/news/feed/", Tier: 5, CategoryBias: "ai_ethics"},
		{Name: "The Center for AI Safety", URL: "https://www.safe.ai/blog/rss", Tier: 5, CategoryBias: "ai_ethics"},
		{Name: "NIST AI RMF Blog", URL: "https://www.nist.gov/topics/artificial-intelligence/news/rss.xml", Tier: 5, CategoryBias: "ai_ethics"},

		// Tier 6: cloud platforms and preprints
		{Name: "AWS Machine Learning Blog", URL: "https://aws.amazon.com/blogs/machine-learning/feed/", Tier: 6, CategoryBias: "infrastructure"},
		{Name: "Google Cloud AI Blog", URL: "https://cloud.google.com/blog/products/ai-machine-learning/rss", Tier: 6, CategoryBias: "infrastructure"},
		{Name: "Azure AI Blog", URL: "https://techcommunity.microsoft.com/gxcuf89792/rss/board?board.id=AI_Blog", Tier: 6, CategoryBias: "infrastructure"},
		{Name: "arXiv cs.AI (filtered)", URL: "https://rss.arxiv.org/rss/cs.AI", Tier: 6, CategoryBias: "ml_engineering"},
		{Name: "arXiv cs.LG (filtered)", URL: "https://rss.arxiv.org/rss/cs.LG", Tier: 6, CategoryBias: "ml_engineering"},
		{Name: "DataRobot Blog", URL: "https://www.datarobot.com/blog/feed/", Tier: 6, CategoryBias: "mlops"},
		{Name: "Scale AI Blog", URL: "https://scale.com/blog/feed", Tier: 6, CategoryBias: "infrastructure"},
	}
}
