package cloak

// DecoyDocument is the generic news page served when a domain has
// cloaking enabled but no cloak landing page configured.
const DecoyDocument = `<!DOCTYPE html>
<html>
<head>
  <title>Breaking News - Latest Updates</title>
  <meta name="description" content="Stay updated with the latest breaking news and current events">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
    .container { max-width: 800px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; }
    h1 { color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px; }
    .news-item { margin: 20px 0; padding: 15px; border-left: 4px solid #007bff; }
    .date { color: #666; font-size: 0.9em; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Breaking News</h1>
    <div class="news-item">
      <h3>Technology Sector Shows Strong Growth</h3>
      <p>The technology sector continues to demonstrate robust performance with several companies reporting record quarterly earnings.</p>
    </div>
    <div class="news-item">
      <h3>Global Market Update</h3>
      <p>Financial markets around the world are showing positive trends as investors respond to favorable economic indicators.</p>
    </div>
  </div>
</body>
</html>
`
